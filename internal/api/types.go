package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/internal/reminder"
	"github.com/hackgods/clinic-booking/internal/slot"
)

type ErrorResponse struct {
	Error     string                   `json:"error"`
	Message   string                   `json:"message"`
	Retryable bool                     `json:"retryable"`
	Fields    []appointment.FieldError `json:"fields,omitempty"`
}

type AppointmentResponse struct {
	ID              uuid.UUID   `json:"id"`
	Reference       string      `json:"reference"`
	PatientID       uuid.UUID   `json:"patient_id"`
	ProviderID      uuid.UUID   `json:"provider_id"`
	SlotID          uuid.UUID   `json:"slot_id"`
	SlotIDs         []uuid.UUID `json:"slot_ids"`
	Date            string      `json:"date"`
	Time            string      `json:"time"`
	StartsAt        time.Time   `json:"starts_at"`
	DurationMinutes int         `json:"duration_minutes"`
	Status          string      `json:"status"`
	PatientType     string      `json:"patient_type"`
	Reason          string      `json:"reason,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

type BookingResponse struct {
	AppointmentResponse
	ProviderName string             `json:"provider_name"`
	Match        string             `json:"match"`
	Reminders    []ReminderResponse `json:"reminders"`
}

type ReminderResponse struct {
	Kind       string    `json:"kind"`
	FireAt     time.Time `json:"fire_at"`
	Dispatched bool      `json:"dispatched"`
}

type SlotResponse struct {
	ID              uuid.UUID `json:"id"`
	ProviderID      uuid.UUID `json:"provider_id"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	StartsAt        time.Time `json:"starts_at"`
	DurationMinutes int       `json:"duration_minutes"`
}

type ProviderResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Specialty string    `json:"specialty"`
}

type PatientResponse struct {
	ID          uuid.UUID          `json:"id"`
	FullName    string             `json:"full_name"`
	DateOfBirth string             `json:"date_of_birth"`
	Phone       string             `json:"phone"`
	Email       string             `json:"email"`
	Insurance   identity.Insurance `json:"insurance"`
	Visits      []string           `json:"visit_history"`
}

type LookupResponse struct {
	PatientType string           `json:"patient_type"`
	Match       string           `json:"match"`
	Patient     *PatientResponse `json:"patient,omitempty"`
}

type GenerateSlotsRequest struct {
	ProviderID  string `json:"provider_id"`
	From        string `json:"from,omitempty"` // YYYY-MM-DD, defaults to today
	HorizonDays int    `json:"horizon_days,omitempty"`
}

type GenerateSlotsResponse struct {
	Created int `json:"created"`
}

func toAppointmentResponse(a *appointment.Appointment, loc *time.Location) AppointmentResponse {
	start := a.StartsAt.In(loc)
	return AppointmentResponse{
		ID:              a.ID,
		Reference:       a.Reference,
		PatientID:       a.PatientID,
		ProviderID:      a.ProviderID,
		SlotID:          a.SlotID,
		SlotIDs:         a.SlotIDs,
		Date:            start.Format("2006-01-02"),
		Time:            start.Format("15:04"),
		StartsAt:        a.StartsAt,
		DurationMinutes: int(a.Duration / time.Minute),
		Status:          string(a.Status),
		PatientType:     string(a.PatientType),
		Reason:          a.Reason,
		CreatedAt:       a.CreatedAt,
	}
}

func toBookingResponse(b *appointment.Booking, loc *time.Location) BookingResponse {
	resp := BookingResponse{
		AppointmentResponse: toAppointmentResponse(&b.Appointment, loc),
		Match:               string(b.Match),
		Reminders:           make([]ReminderResponse, 0, len(b.Reminders)),
	}
	if b.Provider != nil {
		resp.ProviderName = b.Provider.Name
	}
	for _, j := range b.Reminders {
		resp.Reminders = append(resp.Reminders, toReminderResponse(j))
	}
	return resp
}

func toReminderResponse(j reminder.Job) ReminderResponse {
	return ReminderResponse{Kind: j.Kind, FireAt: j.FireAt, Dispatched: j.Dispatched}
}

func toSlotResponse(s slot.Slot, loc *time.Location) SlotResponse {
	start := s.StartsAt.In(loc)
	return SlotResponse{
		ID:              s.ID,
		ProviderID:      s.ProviderID,
		Date:            start.Format("2006-01-02"),
		Time:            start.Format("15:04"),
		StartsAt:        s.StartsAt,
		DurationMinutes: int(s.Duration / time.Minute),
	}
}

func toPatientResponse(p *identity.Patient) *PatientResponse {
	visits := make([]string, 0, len(p.VisitHistory))
	for _, v := range p.VisitHistory {
		visits = append(visits, v.Format("2006-01-02"))
	}
	return &PatientResponse{
		ID:          p.ID,
		FullName:    p.FullName,
		DateOfBirth: p.DateOfBirth.Format("2006-01-02"),
		Phone:       p.Phone,
		Email:       p.Email,
		Insurance:   p.Insurance,
		Visits:      visits,
	}
}
