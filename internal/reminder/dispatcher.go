package reminder

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/metrics"
	"github.com/hackgods/clinic-booking/internal/notify"
)

const defaultBatchSize = 100

// Dispatcher sends due reminders. A job is claimed before anything is
// published, so a crash between claim and publish loses that reminder rather
// than sending it twice.
type Dispatcher struct {
	store    Store
	notifier notify.Notifier
	log      *zap.Logger
	now      func() time.Time
	batch    int
}

func NewDispatcher(store Store, notifier notify.Notifier, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		store:    store,
		notifier: notifier,
		log:      log,
		now:      time.Now,
		batch:    defaultBatchSize,
	}
}

// RunOnce dispatches every job due at the moment of the call and returns how
// many were claimed by this dispatcher.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	now := d.now()

	jobs, err := d.store.Due(ctx, now, d.batch)
	if err != nil {
		return 0, fmt.Errorf("load due reminders: %w", err)
	}

	claimed := 0
	for _, job := range jobs {
		if ctx.Err() != nil {
			return claimed, ctx.Err()
		}

		ok, err := d.store.MarkDispatched(ctx, job.ID, now)
		if err != nil {
			d.log.Error("failed to claim reminder", zap.String("job_id", job.ID.String()), zap.Error(err))
			metrics.RemindersDispatched.WithLabelValues("error").Inc()
			continue
		}
		if !ok {
			metrics.RemindersDispatched.WithLabelValues("skipped").Inc()
			continue
		}
		claimed++
		metrics.RemindersDispatched.WithLabelValues("claimed").Inc()

		payload := make(map[string]string, len(job.Payload)+1)
		for k, v := range job.Payload {
			payload[k] = v
		}
		payload["kind"] = job.Kind

		for _, req := range notify.Requests(job.Contact, notify.TemplateReminder, payload, now) {
			status := "ok"
			if err := d.notifier.Notify(ctx, req); err != nil {
				status = "error"
				d.log.Warn("reminder notification not accepted",
					zap.String("job_id", job.ID.String()),
					zap.String("channel", string(req.Channel)),
					zap.Error(err),
				)
			}
			metrics.NotificationsSent.WithLabelValues(string(req.Channel), string(req.Template), status).Inc()
		}
	}

	if claimed > 0 {
		d.log.Info("reminders dispatched", zap.Int("count", claimed))
	}
	return claimed, nil
}

// Run calls RunOnce every interval until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := d.RunOnce(ctx); err != nil && ctx.Err() == nil {
			d.log.Error("reminder dispatch failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			d.log.Info("reminder dispatcher stopping")
			return nil
		case <-ticker.C:
		}
	}
}
