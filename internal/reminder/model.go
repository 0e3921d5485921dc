// Package reminder turns confirmed appointments into timed reminder jobs and
// hands due jobs to the notifier.
package reminder

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/notify"
)

type Job struct {
	ID            uuid.UUID         `json:"id"`
	AppointmentID uuid.UUID         `json:"appointment_id"`
	FireAt        time.Time         `json:"fire_at"`
	Kind          string            `json:"kind"`
	Dispatched    bool              `json:"dispatched"`
	DispatchedAt  *time.Time        `json:"dispatched_at,omitempty"`
	Contact       notify.Contact    `json:"contact"`
	Payload       map[string]string `json:"payload,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Target is the snapshot of a confirmed appointment the scheduler needs.
// It is copied into every job so dispatch never has to look anything up.
type Target struct {
	AppointmentID uuid.UUID
	StartsAt      time.Time
	Contact       notify.Contact
	Payload       map[string]string
}

// KindFor labels an offset the way operators write it: 24h, 2h, 30m.
func KindFor(offset time.Duration) string {
	switch {
	case offset%time.Hour == 0:
		return fmt.Sprintf("%dh", offset/time.Hour)
	case offset%time.Minute == 0:
		return fmt.Sprintf("%dm", offset/time.Minute)
	default:
		return offset.String()
	}
}
