package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/internal/notify"
	"github.com/hackgods/clinic-booking/internal/reminder"
	"github.com/hackgods/clinic-booking/internal/slot"
)

// future is a Monday far enough ahead that its slots have not started.
var future = time.Date(2031, time.June, 2, 0, 0, 0, 0, time.UTC)

type testServer struct {
	handler  http.Handler
	slots    *slot.MemoryStore
	provider slot.Provider
	day      []slot.Slot
}

func newTestServer(t *testing.T, checks ...HealthCheck) *testServer {
	t.Helper()
	ctx := context.Background()
	log := zap.NewNop()

	slots := slot.NewMemoryStore()
	p := slot.Provider{Name: "Dr. Emily Rodriguez", Specialty: "Pediatrics"}
	require.NoError(t, slots.AddProvider(ctx, &p))
	_, err := slots.BulkGenerate(ctx, slot.GenerateSpec{
		ProviderID: p.ID, From: future, HorizonDays: 1,
		DayStart: 9 * time.Hour, DayEnd: 17 * time.Hour, Grain: 30 * time.Minute,
	})
	require.NoError(t, err)
	day, err := slots.Query(ctx, slot.Filter{ProviderID: &p.ID})
	require.NoError(t, err)

	dates, err := identity.DateParserFor("mdy")
	require.NoError(t, err)
	resolver := identity.NewResolver(identity.NewMemoryStore(), dates, log)
	scheduler := reminder.NewScheduler(reminder.NewMemoryStore(), []time.Duration{24 * time.Hour, 2 * time.Hour}, log)

	svc := appointment.NewService(
		appointment.NewMemoryRepository(), slots, resolver, scheduler, notify.NewLogNotifier(log),
		appointment.Policy{
			NewPatientDuration: time.Hour,
			ReturningDuration:  30 * time.Minute,
			Grain:              30 * time.Minute,
			Location:           time.UTC,
		},
		log,
	)

	h := NewRouter(RouterConfig{
		Appointments: svc,
		Slots:        slots,
		Patients:     resolver,
		SlotDefaults: SlotDefaults{
			Location: time.UTC, HorizonDays: 5,
			DayStart: 9 * time.Hour, DayEnd: 17 * time.Hour, Grain: 30 * time.Minute,
		},
		Checks:  checks,
		Log:     log,
		Env:     "test",
		Version: "test",
	})

	return &testServer{handler: h, slots: slots, provider: p, day: day}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) booking(name string, at int) map[string]any {
	return map[string]any{
		"full_name":     name,
		"date_of_birth": "1985-07-14",
		"phone":         "555-0199",
		"email":         "guardian@example.com",
		"provider_id":   s.provider.ID.String(),
		"slot_id":       s.day[at].ID.String(),
		"insurance":     map[string]string{"provider": "Blue Cross", "member_id": "BC-99"},
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestBookingFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/appointments", s.booking("Sam Ortiz", 2))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	booked := decode[BookingResponse](t, rec)
	assert.Equal(t, "new", booked.PatientType)
	assert.Equal(t, 60, booked.DurationMinutes)
	assert.Equal(t, "10:00", booked.Time)
	assert.Equal(t, "Dr. Emily Rodriguez", booked.ProviderName)
	assert.Len(t, booked.Reminders, 2)

	rec = s.do(t, http.MethodPost, "/appointments", s.booking("Other Person", 3))
	require.Equal(t, http.StatusConflict, rec.Code)
	conflict := decode[ErrorResponse](t, rec)
	assert.Equal(t, "slot_unavailable", conflict.Error)
	assert.True(t, conflict.Retryable)

	rec = s.do(t, http.MethodGet, "/slots?date=2031-06-02&provider_id="+s.provider.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]SlotResponse](t, rec), 14)

	rec = s.do(t, http.MethodGet, "/patients/lookup?name=sam+ortiz&dob=07/14/1985", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	lookup := decode[LookupResponse](t, rec)
	assert.Equal(t, "returning", lookup.PatientType)
	require.NotNil(t, lookup.Patient)
	assert.Equal(t, booked.PatientID, lookup.Patient.ID)

	rec = s.do(t, http.MethodGet, "/appointments/"+booked.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, booked.Reference, decode[AppointmentResponse](t, rec).Reference)

	rec = s.do(t, http.MethodGet, "/appointments/by-reference/"+strings.ToLower(booked.Reference), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, booked.ID, decode[AppointmentResponse](t, rec).ID)

	rec = s.do(t, http.MethodGet, "/appointments/"+booked.ID.String()+"/reminders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ReminderResponse](t, rec), 2)

	rec = s.do(t, http.MethodPost, "/appointments/"+booked.ID.String()+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/appointments/"+booked.ID.String()+"/reminders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]ReminderResponse](t, rec))
	assert.Equal(t, "cancelled", decode[AppointmentResponse](t, rec).Status)

	rec = s.do(t, http.MethodPost, "/appointments/"+booked.ID.String()+"/complete", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/appointments/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[appointment.Stats](t, rec).Total)
}

func TestBookingValidationOverHTTP(t *testing.T) {
	s := newTestServer(t)

	body := s.booking("", 0)
	body["phone"] = ""
	body["slot_id"] = ""

	rec := s.do(t, http.MethodPost, "/appointments", body)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "validation_failed", resp.Error)
	assert.Len(t, resp.Fields, 3)

	rec = s.do(t, http.MethodPost, "/appointments", "not an object")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAppointmentRoutesRejectBadInput(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		method, path string
		code         int
	}{
		{http.MethodGet, "/appointments/not-a-uuid", http.StatusBadRequest},
		{http.MethodGet, "/appointments/7d1c8e84-5b0e-4f0e-9e57-1d8f5bb0f0aa", http.StatusNotFound},
		{http.MethodGet, "/appointments/7d1c8e84-5b0e-4f0e-9e57-1d8f5bb0f0aa/reminders", http.StatusNotFound},
		{http.MethodGet, "/appointments/by-reference/NOPE-0000", http.StatusNotFound},
		{http.MethodGet, "/appointments?status=pending", http.StatusBadRequest},
		{http.MethodGet, "/appointments?date=06/02/2031", http.StatusBadRequest},
		{http.MethodGet, "/slots?provider_id=nope", http.StatusBadRequest},
		{http.MethodGet, "/patients/lookup?name=Sam", http.StatusBadRequest},
		{http.MethodGet, "/patients/search?q=sam&limit=-1", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := s.do(t, tc.method, tc.path, nil)
			assert.Equal(t, tc.code, rec.Code, rec.Body.String())
		})
	}
}

func TestGenerateSlotsAndProviders(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/slots/generate", GenerateSlotsRequest{
		ProviderID: s.provider.ID.String(), From: "2031-06-02", HorizonDays: 2,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 16, decode[GenerateSlotsResponse](t, rec).Created, "only the second day is new")

	rec = s.do(t, http.MethodPost, "/slots/generate", GenerateSlotsRequest{
		ProviderID: "7d1c8e84-5b0e-4f0e-9e57-1d8f5bb0f0aa",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/providers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	providers := decode[[]ProviderResponse](t, rec)
	require.Len(t, providers, 1)
	assert.Equal(t, "Pediatrics", providers[0].Specialty)
}

func TestHealth(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("down") }

	s := newTestServer(t,
		HealthCheck{Name: "postgres", Critical: true, Ping: ok},
		HealthCheck{Name: "redis", Ping: down},
	)
	rec := s.do(t, http.MethodGet, "/health/ready", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decode[ReadinessResponse](t, rec)
	assert.Equal(t, "degraded", ready.Status)
	assert.Equal(t, "down", ready.Dependencies["redis"])

	s = newTestServer(t, HealthCheck{Name: "postgres", Critical: true, Ping: down})
	rec = s.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = s.do(t, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
