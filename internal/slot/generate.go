package slot

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidGenerateSpec = errors.New("invalid slot generation spec")

// GenerateSpec describes a horizon of slots for one provider.
type GenerateSpec struct {
	ProviderID  uuid.UUID
	From        time.Time     // first candidate day, in the clinic location
	HorizonDays int           // number of business days to cover
	DayStart    time.Duration // offset from midnight of the first slot
	DayEnd      time.Duration // offset from midnight the last slot must end by
	Grain       time.Duration
}

func (g GenerateSpec) validate() error {
	switch {
	case g.ProviderID == uuid.Nil,
		g.HorizonDays <= 0,
		g.Grain <= 0,
		g.DayEnd <= g.DayStart,
		g.DayStart < 0,
		g.DayEnd > 24*time.Hour:
		return ErrInvalidGenerateSpec
	}
	return nil
}

// Plan lists the slots a spec covers, Monday to Friday only, in start order.
// Slots come back available and without ids.
func Plan(g GenerateSpec) ([]Slot, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}

	loc := g.From.Location()
	y, m, d := g.From.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)

	var out []Slot
	for days := 0; days < g.HorizonDays; day = day.AddDate(0, 0, 1) {
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		days++

		for off := g.DayStart; off+g.Grain <= g.DayEnd; off += g.Grain {
			out = append(out, Slot{
				ProviderID: g.ProviderID,
				StartsAt:   day.Add(off),
				Duration:   g.Grain,
				Available:  true,
			})
		}
	}
	return out, nil
}
