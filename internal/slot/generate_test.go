package slot

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanSkipsWeekendsAndFillsWorkday(t *testing.T) {
	friday := time.Date(2026, time.October, 16, 7, 0, 0, 0, time.UTC)
	spec := GenerateSpec{
		ProviderID:  uuid.New(),
		From:        friday,
		HorizonDays: 2,
		DayStart:    9 * time.Hour,
		DayEnd:      17 * time.Hour,
		Grain:       30 * time.Minute,
	}

	slots, err := Plan(spec)
	require.NoError(t, err)
	require.Len(t, slots, 32)

	assert.Equal(t, "2026-10-16", slots[0].Date())
	assert.Equal(t, "09:00", slots[0].Clock())
	assert.Equal(t, "16:30", slots[15].Clock())
	assert.Equal(t, "2026-10-19", slots[16].Date(), "weekend is skipped")
	for _, sl := range slots {
		assert.True(t, sl.Available)
		assert.Equal(t, spec.Grain, sl.Duration)
	}
}

func TestPlanRejectsBadSpecs(t *testing.T) {
	base := GenerateSpec{
		ProviderID:  uuid.New(),
		From:        time.Now(),
		HorizonDays: 1,
		DayStart:    9 * time.Hour,
		DayEnd:      17 * time.Hour,
		Grain:       30 * time.Minute,
	}

	bad := []func(*GenerateSpec){
		func(g *GenerateSpec) { g.ProviderID = uuid.Nil },
		func(g *GenerateSpec) { g.HorizonDays = 0 },
		func(g *GenerateSpec) { g.Grain = 0 },
		func(g *GenerateSpec) { g.DayEnd = g.DayStart },
	}
	for _, mutate := range bad {
		g := base
		mutate(&g)
		_, err := Plan(g)
		assert.ErrorIs(t, err, ErrInvalidGenerateSpec)
	}
}
