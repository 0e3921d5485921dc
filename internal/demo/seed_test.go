package demo

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/internal/slot"
)

func TestSeedFillsStores(t *testing.T) {
	ctx := context.Background()
	slots := slot.NewMemoryStore()
	patients := identity.NewMemoryStore()
	now := time.Date(2026, time.October, 16, 8, 0, 0, 0, time.UTC) // Friday

	res, err := Seed(ctx, slots, patients, Options{
		Seed:      42,
		Providers: 4,
		Patients:  25,
		Horizon: slot.GenerateSpec{
			From:        now,
			HorizonDays: 5,
			DayStart:    9 * time.Hour,
			DayEnd:      17 * time.Hour,
			Grain:       30 * time.Minute,
		},
		Now: now,
	}, zap.NewNop())
	require.NoError(t, err)

	require.Len(t, res.Providers, 4)
	assert.Equal(t, "Dr. Smith", res.Providers[0].Name)
	assert.Equal(t, 4*5*16, res.Slots)
	assert.Equal(t, 25, res.Patients)

	open, err := slots.Query(ctx, slot.Filter{})
	require.NoError(t, err)
	assert.Len(t, open, res.Slots)
	for _, s := range open {
		wd := s.StartsAt.Weekday()
		assert.NotEqual(t, time.Saturday, wd)
		assert.NotEqual(t, time.Sunday, wd)
	}

	found, err := patients.Search(ctx, "@", 100)
	require.NoError(t, err)
	require.Len(t, found, 25)
	for _, p := range found {
		assert.NotEmpty(t, p.Insurance.MemberID)
		assert.LessOrEqual(t, len(p.VisitHistory), 10)
		assert.True(t, p.DateOfBirth.Before(now.AddDate(-17, 0, 0)))
	}
}

func TestSeedIsReproducible(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, time.October, 16, 8, 0, 0, 0, time.UTC)
	opts := Options{
		Seed:     7,
		Patients: 5,
		Horizon: slot.GenerateSpec{
			From: now, HorizonDays: 1, DayStart: 9 * time.Hour, DayEnd: 10 * time.Hour, Grain: 30 * time.Minute,
		},
		Now: now,
	}

	names := func() []string {
		patients := identity.NewMemoryStore()
		_, err := Seed(ctx, slot.NewMemoryStore(), patients, opts, zap.NewNop())
		require.NoError(t, err)
		found, err := patients.Search(ctx, "@", 0)
		require.NoError(t, err)
		var out []string
		for _, p := range found {
			out = append(out, p.FullName+"|"+p.Insurance.MemberID)
		}
		return out
	}

	assert.Equal(t, names(), names())
}

func TestFakeVisitsOrderedWithinTwoYears(t *testing.T) {
	now := time.Date(2026, time.October, 16, 8, 0, 0, 0, time.UTC)
	f := gofakeit.New(3)
	for i := 0; i < 50; i++ {
		visits := fakeVisits(f, now)
		assert.LessOrEqual(t, len(visits), 10)
		for j, v := range visits {
			assert.False(t, v.After(now))
			assert.False(t, v.Before(identity.CivilDate(now.AddDate(-2, 0, -1))))
			if j > 0 {
				assert.False(t, v.Before(visits[j-1]))
			}
		}
	}
}

func TestSeedTwiceDoesNotDuplicate(t *testing.T) {
	ctx := context.Background()
	slots := slot.NewMemoryStore()
	patients := identity.NewMemoryStore()
	now := time.Date(2026, time.October, 16, 8, 0, 0, 0, time.UTC)
	opts := Options{
		Seed:     11,
		Patients: 10,
		Horizon: slot.GenerateSpec{
			From: now, HorizonDays: 2, DayStart: 9 * time.Hour, DayEnd: 12 * time.Hour, Grain: 30 * time.Minute,
		},
		Now: now,
	}

	first, err := Seed(ctx, slots, patients, opts, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 3*2*6, first.Slots)
	assert.Equal(t, 10, first.Patients)

	second, err := Seed(ctx, slots, patients, opts, zap.NewNop())
	require.NoError(t, err)
	assert.Zero(t, second.Slots)
	assert.Zero(t, second.Patients)
	assert.Equal(t, 10, second.Existing)

	providers, err := slots.ListProviders(ctx)
	require.NoError(t, err)
	require.Len(t, providers, 3)
	for i := range providers {
		assert.Equal(t, first.Providers[i].ID, second.Providers[i].ID)
	}
}
