package slot

import (
	"time"

	"github.com/google/uuid"
)

type Provider struct {
	ID        uuid.UUID
	Name      string
	Specialty string
	CreatedAt time.Time
}

// Slot is one bookable unit of a provider's day.
type Slot struct {
	ID         uuid.UUID
	ProviderID uuid.UUID
	StartsAt   time.Time
	Duration   time.Duration
	Available  bool
	HeldBy     *uuid.UUID
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (s Slot) EndsAt() time.Time {
	return s.StartsAt.Add(s.Duration)
}

// Date and Clock render the slot start in its own location.
func (s Slot) Date() string {
	return s.StartsAt.Format("2006-01-02")
}

func (s Slot) Clock() string {
	return s.StartsAt.Format("15:04")
}

// Filter narrows Query. Date is any instant on the wanted day; the day is
// taken in Date's location.
type Filter struct {
	ProviderID *uuid.UUID
	Date       *time.Time
}

func (f Filter) dayRange() (time.Time, time.Time, bool) {
	if f.Date == nil {
		return time.Time{}, time.Time{}, false
	}
	y, m, d := f.Date.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, f.Date.Location())
	return from, from.AddDate(0, 0, 1), true
}

func (f Filter) matches(s *Slot) bool {
	if f.ProviderID != nil && s.ProviderID != *f.ProviderID {
		return false
	}
	if from, to, ok := f.dayRange(); ok {
		if s.StartsAt.Before(from) || !s.StartsAt.Before(to) {
			return false
		}
	}
	return true
}
