package appointment

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists appointments. Create fails with ErrSlotTaken when an
// active appointment already owns one of the slots.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	Get(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetByReference(ctx context.Context, ref string) (*Appointment, error)
	// Delete is only used to undo a Create whose booking failed later.
	Delete(ctx context.Context, id uuid.UUID) error
	// UpdateStatus moves from -> to atomically and returns
	// ErrAppointmentNotFound if the appointment is not in from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)
	// List returns matches ordered by start, then creation.
	List(ctx context.Context, f Filter) ([]Appointment, error)
}
