package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type MemoryStore struct {
	mu       sync.RWMutex
	patients []*Patient
	byID     map[uuid.UUID]*Patient
	byKey    map[string]uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:  make(map[uuid.UUID]*Patient),
		byKey: make(map[string]uuid.UUID),
	}
}

func (s *MemoryStore) ListByDateOfBirth(_ context.Context, dob time.Time) ([]Patient, error) {
	dob = CivilDate(dob)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Patient
	for _, p := range s.patients {
		if p.DateOfBirth.Equal(dob) {
			out = append(out, p.clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	c := p.clone()
	return &c, nil
}

func (s *MemoryStore) Create(_ context.Context, p *Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[p.ID]; ok {
		return ErrPatientExists
	}
	key := identityKey(p.FullName, p.DateOfBirth)
	if _, ok := s.byKey[key]; ok && key != "" {
		return ErrPatientExists
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.DateOfBirth = CivilDate(p.DateOfBirth)

	c := p.clone()
	s.patients = append(s.patients, &c)
	s.byID[c.ID] = &c
	if key != "" {
		s.byKey[key] = c.ID
	}
	return nil
}

func (s *MemoryStore) AppendVisit(_ context.Context, id uuid.UUID, visit time.Time) (*Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	p.VisitHistory = append(p.VisitHistory, CivilDate(visit))
	p.UpdatedAt = time.Now()
	c := p.clone()
	return &c, nil
}

func (s *MemoryStore) Search(_ context.Context, term string, limit int) ([]Patient, error) {
	needle := strings.ToLower(strings.TrimSpace(term))

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Patient
	for _, p := range s.patients {
		if limit > 0 && len(out) >= limit {
			break
		}
		if strings.Contains(strings.ToLower(p.FullName), needle) ||
			strings.Contains(strings.ToLower(p.Email), needle) ||
			strings.Contains(p.Phone, strings.TrimSpace(term)) {
			out = append(out, p.clone())
		}
	}
	return out, nil
}
