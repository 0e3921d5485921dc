package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/metrics"
)

type Option func(*Scheduler)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

type Scheduler struct {
	store   Store
	offsets []time.Duration
	now     func() time.Time
	log     *zap.Logger
}

func NewScheduler(store Store, offsets []time.Duration, log *zap.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:   store,
		offsets: offsets,
		now:     time.Now,
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Plan computes the jobs for t without storing them. Offsets whose fire time
// is not strictly after now are skipped.
func (s *Scheduler) Plan(t Target) []Job {
	now := s.now()

	var jobs []Job
	for _, off := range s.offsets {
		fireAt := t.StartsAt.Add(-off)
		if !fireAt.After(now) {
			continue
		}
		jobs = append(jobs, Job{
			ID:            uuid.New(),
			AppointmentID: t.AppointmentID,
			FireAt:        fireAt,
			Kind:          KindFor(off),
			Contact:       t.Contact,
			Payload:       t.Payload,
			CreatedAt:     now,
		})
	}
	return jobs
}

func (s *Scheduler) Schedule(ctx context.Context, t Target) ([]Job, error) {
	jobs := s.Plan(t)
	if len(jobs) == 0 {
		s.log.Debug("no reminders in the future",
			zap.String("appointment_id", t.AppointmentID.String()),
			zap.Time("starts_at", t.StartsAt),
		)
		return nil, nil
	}

	if err := s.store.CreateBatch(ctx, jobs); err != nil {
		return nil, fmt.Errorf("schedule reminders: %w", err)
	}

	metrics.RemindersScheduled.Add(float64(len(jobs)))
	s.log.Info("reminders scheduled",
		zap.String("appointment_id", t.AppointmentID.String()),
		zap.Int("count", len(jobs)),
	)
	return jobs, nil
}

func (s *Scheduler) CancelForAppointment(ctx context.Context, appointmentID uuid.UUID) error {
	n, err := s.store.DeletePending(ctx, appointmentID)
	if err != nil {
		return fmt.Errorf("cancel reminders: %w", err)
	}
	if n > 0 {
		s.log.Info("reminders cancelled",
			zap.String("appointment_id", appointmentID.String()),
			zap.Int("count", n),
		)
	}
	return nil
}

func (s *Scheduler) List(ctx context.Context, appointmentID uuid.UUID) ([]Job, error) {
	return s.store.ListByAppointment(ctx, appointmentID)
}
