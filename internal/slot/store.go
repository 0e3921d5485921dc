package slot

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrSlotNotFound     = errors.New("slot not found")
	ErrProviderNotFound = errors.New("provider not found")
	ErrAlreadyReserved  = errors.New("slot already reserved")
	// ErrRunUnavailable means the day has no contiguous run of free slots of
	// the requested length starting at the chosen slot.
	ErrRunUnavailable = errors.New("not enough contiguous slots from the selected start")
)

// Store is the authoritative set of bookable slots. Reserve, ReserveRun and
// Release are the only mutations on existing slots and are atomic per slot.
type Store interface {
	Query(ctx context.Context, f Filter) ([]Slot, error)
	Get(ctx context.Context, id uuid.UUID) (*Slot, error)

	Reserve(ctx context.Context, slotID, patientID uuid.UUID) (*Slot, error)
	// ReserveRun reserves units contiguous slots of one provider, starting at
	// slotID, all or nothing.
	ReserveRun(ctx context.Context, slotID, patientID uuid.UUID, units int) ([]Slot, error)
	// Release frees the given slots if they are held by patientID.
	Release(ctx context.Context, patientID uuid.UUID, slotIDs ...uuid.UUID) error

	// BulkGenerate creates missing slots for a horizon and never touches
	// slots that already exist. It returns how many were created.
	BulkGenerate(ctx context.Context, spec GenerateSpec) (int, error)

	AddProvider(ctx context.Context, p *Provider) error
	GetProvider(ctx context.Context, id uuid.UUID) (*Provider, error)
	ListProviders(ctx context.Context) ([]Provider, error)
}

// contiguous reports whether run is back to back in start order.
func contiguous(run []*Slot) bool {
	for i := 1; i < len(run); i++ {
		if !run[i-1].EndsAt().Equal(run[i].StartsAt) {
			return false
		}
	}
	return true
}
