package slot

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/metrics"
)

type entry struct {
	mu   sync.Mutex
	slot Slot
}

type slotKey struct {
	provider uuid.UUID
	start    int64
}

// MemoryStore keeps slots in process. The map lock only guards the indexes;
// each slot has its own mutex so reservations on different slots never
// contend.
type MemoryStore struct {
	mu            sync.RWMutex
	slots         map[uuid.UUID]*entry
	byProvider    map[uuid.UUID][]*entry // start order
	keys          map[slotKey]bool
	providers     map[uuid.UUID]*Provider
	providerOrder []uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		slots:      make(map[uuid.UUID]*entry),
		byProvider: make(map[uuid.UUID][]*entry),
		keys:       make(map[slotKey]bool),
		providers:  make(map[uuid.UUID]*Provider),
	}
}

func (s *MemoryStore) Query(_ context.Context, f Filter) ([]Slot, error) {
	s.mu.RLock()
	var candidates []*entry
	if f.ProviderID != nil {
		candidates = append(candidates, s.byProvider[*f.ProviderID]...)
	} else {
		for _, list := range s.byProvider {
			candidates = append(candidates, list...)
		}
	}
	s.mu.RUnlock()

	var out []Slot
	for _, e := range candidates {
		e.mu.Lock()
		sl := e.slot
		e.mu.Unlock()
		if sl.Available && f.matches(&sl) {
			out = append(out, sl)
		}
	}
	sortSlots(out)
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Slot, error) {
	e := s.lookup(id)
	if e == nil {
		return nil, ErrSlotNotFound
	}
	e.mu.Lock()
	sl := e.slot
	e.mu.Unlock()
	return &sl, nil
}

func (s *MemoryStore) Reserve(_ context.Context, slotID, patientID uuid.UUID) (*Slot, error) {
	e := s.lookup(slotID)
	if e == nil {
		return nil, ErrSlotNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.slot.Available {
		metrics.SlotReservations.WithLabelValues("conflict").Inc()
		return nil, ErrAlreadyReserved
	}
	hold(&e.slot, patientID)
	metrics.SlotReservations.WithLabelValues("ok").Inc()

	sl := e.slot
	return &sl, nil
}

func (s *MemoryStore) ReserveRun(ctx context.Context, slotID, patientID uuid.UUID, units int) ([]Slot, error) {
	if units <= 1 {
		sl, err := s.Reserve(ctx, slotID, patientID)
		if err != nil {
			return nil, err
		}
		return []Slot{*sl}, nil
	}

	run, err := s.runFrom(slotID, units)
	if err != nil {
		return nil, err
	}

	// Runs of one provider are always locked in start order.
	for _, e := range run {
		e.mu.Lock()
	}
	defer func() {
		for _, e := range run {
			e.mu.Unlock()
		}
	}()

	for _, e := range run {
		if !e.slot.Available {
			metrics.SlotReservations.WithLabelValues("conflict").Inc()
			return nil, ErrAlreadyReserved
		}
	}

	out := make([]Slot, len(run))
	for i, e := range run {
		hold(&e.slot, patientID)
		out[i] = e.slot
	}
	metrics.SlotReservations.WithLabelValues("ok").Inc()
	return out, nil
}

func (s *MemoryStore) runFrom(slotID uuid.UUID, units int) ([]*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	anchor, ok := s.slots[slotID]
	if !ok {
		return nil, ErrSlotNotFound
	}
	list := s.byProvider[anchor.slot.ProviderID]
	idx := sort.Search(len(list), func(i int) bool {
		return !list[i].slot.StartsAt.Before(anchor.slot.StartsAt)
	})
	if idx >= len(list) || list[idx] != anchor || idx+units > len(list) {
		return nil, ErrRunUnavailable
	}

	run := append([]*entry(nil), list[idx:idx+units]...)
	views := make([]*Slot, len(run))
	for i, e := range run {
		views[i] = &e.slot
	}
	if !contiguous(views) {
		return nil, ErrRunUnavailable
	}
	return run, nil
}

func (s *MemoryStore) Release(_ context.Context, patientID uuid.UUID, slotIDs ...uuid.UUID) error {
	var firstErr error
	for _, id := range slotIDs {
		e := s.lookup(id)
		if e == nil {
			if firstErr == nil {
				firstErr = ErrSlotNotFound
			}
			continue
		}
		e.mu.Lock()
		if !e.slot.Available && e.slot.HeldBy != nil && *e.slot.HeldBy == patientID {
			e.slot.Available = true
			e.slot.HeldBy = nil
			e.slot.UpdatedAt = time.Now()
		}
		e.mu.Unlock()
	}
	return firstErr
}

func (s *MemoryStore) BulkGenerate(_ context.Context, spec GenerateSpec) (int, error) {
	planned, err := Plan(spec)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.providers[spec.ProviderID]; !ok {
		return 0, ErrProviderNotFound
	}

	now := time.Now()
	created := 0
	list := s.byProvider[spec.ProviderID]
	for _, sl := range planned {
		key := slotKey{provider: sl.ProviderID, start: sl.StartsAt.UnixNano()}
		if s.keys[key] {
			continue
		}
		sl.ID = uuid.New()
		sl.CreatedAt = now
		sl.UpdatedAt = now
		e := &entry{slot: sl}
		s.keys[key] = true
		s.slots[sl.ID] = e
		list = append(list, e)
		created++
	}
	if created > 0 {
		// Fresh backing array so runs copied by readers stay valid.
		sorted := append([]*entry(nil), list...)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].slot.StartsAt.Before(sorted[j].slot.StartsAt)
		})
		s.byProvider[spec.ProviderID] = sorted
	}

	metrics.SlotsGenerated.Add(float64(created))
	return created, nil
}

func (s *MemoryStore) AddProvider(_ context.Context, p *Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if _, ok := s.providers[p.ID]; !ok {
		s.providerOrder = append(s.providerOrder, p.ID)
	}
	p.CreatedAt = time.Now()
	c := *p
	s.providers[p.ID] = &c
	return nil
}

func (s *MemoryStore) GetProvider(_ context.Context, id uuid.UUID) (*Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.providers[id]
	if !ok {
		return nil, ErrProviderNotFound
	}
	c := *p
	return &c, nil
}

func (s *MemoryStore) ListProviders(_ context.Context) ([]Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Provider, 0, len(s.providerOrder))
	for _, id := range s.providerOrder {
		out = append(out, *s.providers[id])
	}
	return out, nil
}

func (s *MemoryStore) lookup(id uuid.UUID) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slots[id]
}

func hold(sl *Slot, patientID uuid.UUID) {
	held := patientID
	sl.Available = false
	sl.HeldBy = &held
	sl.UpdatedAt = time.Now()
}

func sortSlots(out []Slot) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].StartsAt.Before(out[j].StartsAt)
		}
		return out[i].ProviderID.String() < out[j].ProviderID.String()
	})
}
