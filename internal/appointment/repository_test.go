package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAppointment(slots ...uuid.UUID) *Appointment {
	return &Appointment{
		ID:          uuid.New(),
		Reference:   "APT20261016" + uuid.NewString()[:8],
		PatientID:   uuid.New(),
		ProviderID:  uuid.New(),
		SlotID:      slots[0],
		SlotIDs:     slots,
		StartsAt:    monday.Add(9 * time.Hour),
		Duration:    30 * time.Minute * time.Duration(len(slots)),
		Status:      StatusConfirmed,
		PatientType: PatientNew,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestMemoryRepositoryOneActiveAppointmentPerSlot(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	a, b := uuid.New(), uuid.New()

	first := sampleAppointment(a, b)
	require.NoError(t, r.Create(ctx, first))
	assert.ErrorIs(t, r.Create(ctx, sampleAppointment(b)), ErrSlotTaken)

	_, err := r.UpdateStatus(ctx, first.ID, StatusConfirmed, StatusCancelled)
	require.NoError(t, err)
	assert.NoError(t, r.Create(ctx, sampleAppointment(b)))
}

func TestMemoryRepositoryUpdateStatusIsConditional(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	appt := sampleAppointment(uuid.New())
	require.NoError(t, r.Create(ctx, appt))

	_, err := r.UpdateStatus(ctx, appt.ID, StatusCancelled, StatusCompleted)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	done, err := r.UpdateStatus(ctx, appt.ID, StatusConfirmed, StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
}

func TestMemoryRepositoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	appt := sampleAppointment(uuid.New())
	require.NoError(t, r.Create(ctx, appt))

	got, err := r.Get(ctx, appt.ID)
	require.NoError(t, err)
	got.SlotIDs[0] = uuid.Nil

	again, err := r.Get(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appt.SlotIDs[0], again.SlotIDs[0])

	require.NoError(t, r.Delete(ctx, appt.ID))
	assert.ErrorIs(t, r.Delete(ctx, appt.ID), ErrAppointmentNotFound)
}

func TestCanTransitionTo(t *testing.T) {
	a := &Appointment{Status: StatusConfirmed}
	assert.True(t, a.CanTransitionTo(StatusCancelled))
	assert.True(t, a.CanTransitionTo(StatusCompleted))
	assert.False(t, a.CanTransitionTo(StatusConfirmed))

	a.Status = StatusCancelled
	assert.False(t, a.CanTransitionTo(StatusCompleted))
}

func TestMemoryRepositoryRestoringReclaimsSlots(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	a, b := uuid.New(), uuid.New()

	appt := sampleAppointment(a, b)
	require.NoError(t, r.Create(ctx, appt))
	_, err := r.UpdateStatus(ctx, appt.ID, StatusConfirmed, StatusCancelled)
	require.NoError(t, err)

	restored, err := r.UpdateStatus(ctx, appt.ID, StatusCancelled, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, restored.Status)
	assert.ErrorIs(t, r.Create(ctx, sampleAppointment(b)), ErrSlotTaken)

	_, err = r.UpdateStatus(ctx, appt.ID, StatusConfirmed, StatusCancelled)
	require.NoError(t, err)
	require.NoError(t, r.Create(ctx, sampleAppointment(b)))

	_, err = r.UpdateStatus(ctx, appt.ID, StatusCancelled, StatusConfirmed)
	assert.ErrorIs(t, err, ErrSlotTaken)

	got, err := r.Get(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
}
