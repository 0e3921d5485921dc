package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/internal/reminder"
	"github.com/hackgods/clinic-booking/internal/slot"
)

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

type PatientType string

const (
	PatientNew       PatientType = "new"
	PatientReturning PatientType = "returning"
)

// Appointment is immutable after creation except for Status.
type Appointment struct {
	ID          uuid.UUID
	Reference   string
	PatientID   uuid.UUID
	ProviderID  uuid.UUID
	SlotID      uuid.UUID   // first slot of the run
	SlotIDs     []uuid.UUID // every slot held, in start order
	StartsAt    time.Time
	Duration    time.Duration
	Status      Status
	PatientType PatientType
	Reason      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (a *Appointment) EndsAt() time.Time {
	return a.StartsAt.Add(a.Duration)
}

func (a *Appointment) CanTransitionTo(next Status) bool {
	allowed := map[Status][]Status{
		StatusConfirmed: {StatusCancelled, StatusCompleted},
		StatusCancelled: {},
		StatusCompleted: {},
	}

	for _, s := range allowed[a.Status] {
		if s == next {
			return true
		}
	}
	return false
}

func (a Appointment) clone() Appointment {
	a.SlotIDs = append([]uuid.UUID(nil), a.SlotIDs...)
	return a
}

// Booking is what a successful Book returns.
type Booking struct {
	Appointment
	Patient   *identity.Patient
	Provider  *slot.Provider
	Match     identity.MatchKind
	Reminders []reminder.Job
}

type Filter struct {
	Date       *time.Time // any instant on the wanted day, in the clinic location
	Status     *Status
	ProviderID *uuid.UUID
	PatientID  *uuid.UUID
}

func (f Filter) matches(a *Appointment) bool {
	if f.Status != nil && a.Status != *f.Status {
		return false
	}
	if f.ProviderID != nil && a.ProviderID != *f.ProviderID {
		return false
	}
	if f.PatientID != nil && a.PatientID != *f.PatientID {
		return false
	}
	if from, to, ok := f.dayRange(); ok {
		if a.StartsAt.Before(from) || !a.StartsAt.Before(to) {
			return false
		}
	}
	return true
}

func (f Filter) dayRange() (time.Time, time.Time, bool) {
	if f.Date == nil {
		return time.Time{}, time.Time{}, false
	}
	y, m, d := f.Date.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, f.Date.Location())
	return from, from.AddDate(0, 0, 1), true
}

type Stats struct {
	Total         int                 `json:"total"`
	ByStatus      map[Status]int      `json:"by_status"`
	ByPatientType map[PatientType]int `json:"by_patient_type"`
	ByProvider    map[string]int      `json:"by_provider"`
	ByInsurance   map[string]int      `json:"by_insurance"`
}
