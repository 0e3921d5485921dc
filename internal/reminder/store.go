package reminder

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Store interface {
	CreateBatch(ctx context.Context, jobs []Job) error
	// Due returns undispatched jobs with FireAt <= now, earliest first.
	Due(ctx context.Context, now time.Time, limit int) ([]Job, error)
	// MarkDispatched flips Dispatched from false to true. It reports false
	// when the job was already dispatched or no longer exists.
	MarkDispatched(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]Job, error)
	// DeletePending removes the appointment's undispatched jobs.
	DeletePending(ctx context.Context, appointmentID uuid.UUID) (int, error)
}
