package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type MemoryRepository struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*Appointment
	// active maps each held slot to its non-cancelled appointment
	active map[uuid.UUID]uuid.UUID
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		items:  make(map[uuid.UUID]*Appointment),
		active: make(map[uuid.UUID]uuid.UUID),
	}
}

func (r *MemoryRepository) Create(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range a.SlotIDs {
		if _, taken := r.active[id]; taken {
			return ErrSlotTaken
		}
	}

	cp := a.clone()
	r.items[a.ID] = &cp
	if cp.Status != StatusCancelled {
		for _, id := range cp.SlotIDs {
			r.active[id] = cp.ID
		}
	}
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.items[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := a.clone()
	return &cp, nil
}

func (r *MemoryRepository) GetByReference(_ context.Context, ref string) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.items {
		if a.Reference == ref {
			cp := a.clone()
			return &cp, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (r *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.items[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	r.unindex(a)
	delete(r.items, id)
	return nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.items[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	if from == StatusCancelled && to != StatusCancelled {
		for _, sid := range a.SlotIDs {
			if _, taken := r.active[sid]; taken {
				return nil, ErrSlotTaken
			}
		}
		for _, sid := range a.SlotIDs {
			r.active[sid] = a.ID
		}
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	if to == StatusCancelled {
		r.unindex(a)
	}
	cp := a.clone()
	return &cp, nil
}

func (r *MemoryRepository) List(_ context.Context, f Filter) ([]Appointment, error) {
	r.mu.RLock()
	out := make([]Appointment, 0)
	for _, a := range r.items {
		if f.matches(a) {
			out = append(out, a.clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].StartsAt.Before(out[j].StartsAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepository) unindex(a *Appointment) {
	for _, id := range a.SlotIDs {
		if r.active[id] == a.ID {
			delete(r.active, id)
		}
	}
}
