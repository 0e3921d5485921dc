package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/internal/slot"
)

type handlers struct {
	appointments *appointment.Service
	slots        slot.Store
	patients     *identity.Resolver
	defaults     SlotDefaults
	log          *zap.Logger
}

func (h *handlers) bookAppointment(w http.ResponseWriter, r *http.Request) {
	var req appointment.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON", true)
		return
	}

	b, err := h.appointments.Book(r.Context(), req)
	if err != nil {
		h.handleBookError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toBookingResponse(b, h.defaults.Location))
}

func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}

	appt, err := h.appointments.Get(r.Context(), id)
	if err != nil {
		h.handleStatusError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt, h.defaults.Location))
}

func (h *handlers) getAppointmentByReference(w http.ResponseWriter, r *http.Request) {
	appt, err := h.appointments.GetByReference(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		h.handleStatusError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt, h.defaults.Location))
}

func (h *handlers) listReminders(w http.ResponseWriter, r *http.Request) {
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}

	jobs, err := h.appointments.Reminders(r.Context(), id)
	if err != nil {
		h.handleStatusError(w, r, err)
		return
	}
	out := make([]ReminderResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toReminderResponse(j))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}

	appt, err := h.appointments.Cancel(r.Context(), id)
	if err != nil {
		h.handleStatusError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt, h.defaults.Location))
}

func (h *handlers) completeAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}

	appt, err := h.appointments.Complete(r.Context(), id)
	if err != nil {
		h.handleStatusError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt, h.defaults.Location))
}

func (h *handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	f, ok := h.appointmentFilter(w, r)
	if !ok {
		return
	}

	appts, err := h.appointments.List(r.Context(), f)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	resp := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		resp = append(resp, toAppointmentResponse(&appts[i], h.defaults.Location))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) appointmentStats(w http.ResponseWriter, r *http.Request) {
	f, ok := h.appointmentFilter(w, r)
	if !ok {
		return
	}

	st, err := h.appointments.Stats(r.Context(), f)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *handlers) listSlots(w http.ResponseWriter, r *http.Request) {
	var f slot.Filter

	q := r.URL.Query()
	if v := q.Get("provider_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "provider_id must be a valid UUID", true)
			return
		}
		f.ProviderID = &id
	}
	if v := q.Get("date"); v != "" {
		d, err := time.ParseInLocation("2006-01-02", v, h.defaults.Location)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD", true)
			return
		}
		f.Date = &d
	}

	slots, err := h.appointments.AvailableSlots(r.Context(), f)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	resp := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		resp = append(resp, toSlotResponse(s, h.defaults.Location))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) generateSlots(w http.ResponseWriter, r *http.Request) {
	var req GenerateSlotsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON", true)
		return
	}

	providerID, err := uuid.Parse(req.ProviderID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_provider_id", "provider_id must be a valid UUID", true)
		return
	}

	from := time.Now().In(h.defaults.Location)
	if req.From != "" {
		from, err = time.ParseInLocation("2006-01-02", req.From, h.defaults.Location)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "from must be YYYY-MM-DD", true)
			return
		}
	}

	horizon := h.defaults.HorizonDays
	if req.HorizonDays > 0 {
		horizon = req.HorizonDays
	}

	n, err := h.slots.BulkGenerate(r.Context(), slot.GenerateSpec{
		ProviderID:  providerID,
		From:        from,
		HorizonDays: horizon,
		DayStart:    h.defaults.DayStart,
		DayEnd:      h.defaults.DayEnd,
		Grain:       h.defaults.Grain,
	})
	if err != nil {
		switch {
		case errors.Is(err, slot.ErrProviderNotFound):
			writeError(w, http.StatusNotFound, "provider_not_found", err.Error(), false)
		case errors.Is(err, slot.ErrInvalidGenerateSpec):
			writeError(w, http.StatusBadRequest, "invalid_generate_spec", err.Error(), true)
		default:
			h.internalError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, GenerateSlotsResponse{Created: n})
}

func (h *handlers) listProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.slots.ListProviders(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	resp := make([]ProviderResponse, 0, len(providers))
	for _, p := range providers {
		resp = append(resp, ProviderResponse{ID: p.ID, Name: p.Name, Specialty: p.Specialty})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) lookupPatient(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	dob := r.URL.Query().Get("dob")
	if strings.TrimSpace(name) == "" || strings.TrimSpace(dob) == "" {
		writeError(w, http.StatusBadRequest, "missing_parameters", "name and dob are required", true)
		return
	}

	res := h.patients.Resolve(r.Context(), name, dob)

	resp := LookupResponse{
		PatientType: string(appointment.PatientNew),
		Match:       string(res.Match),
	}
	if res.Existing() {
		resp.PatientType = string(appointment.PatientReturning)
		resp.Patient = toPatientResponse(res.Patient)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) searchPatients(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer", true)
			return
		}
		limit = min(n, 100)
	}

	found, err := h.patients.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	resp := make([]*PatientResponse, 0, len(found))
	for i := range found {
		resp = append(resp, toPatientResponse(&found[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Helpers

func appointmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID", true)
		return uuid.Nil, false
	}
	return id, true
}

func (h *handlers) appointmentFilter(w http.ResponseWriter, r *http.Request) (appointment.Filter, bool) {
	var f appointment.Filter
	q := r.URL.Query()

	if v := q.Get("date"); v != "" {
		d, err := time.ParseInLocation("2006-01-02", v, h.defaults.Location)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD", true)
			return f, false
		}
		f.Date = &d
	}
	if v := q.Get("status"); v != "" {
		st := appointment.Status(strings.ToLower(v))
		if !st.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_status", "status must be confirmed, cancelled or completed", true)
			return f, false
		}
		f.Status = &st
	}
	for key, dst := range map[string]**uuid.UUID{"provider_id": &f.ProviderID, "patient_id": &f.PatientID} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_"+key, key+" must be a valid UUID", true)
			return f, false
		}
		*dst = &id
	}
	return f, true
}

func (h *handlers) handleBookError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *appointment.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:     "validation_failed",
			Message:   "please correct the listed fields and resubmit",
			Retryable: true,
			Fields:    verr.Fields,
		})
	case errors.Is(err, appointment.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", "the selected time is no longer available, choose another slot", true)
	case errors.Is(err, slot.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error(), true)
	default:
		h.internalError(w, r, err)
	}
}

func (h *handlers) handleStatusError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error(), false)
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error(), false)
	default:
		h.internalError(w, r, err)
	}
}

// internalError logs the cause and answers with a generic message.
func (h *handlers) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Error("request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", GetRequestID(r.Context())),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong on our side", false)
}
