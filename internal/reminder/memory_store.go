package reminder

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type MemoryStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*Job
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[uuid.UUID]*Job)}
}

func (s *MemoryStore) CreateBatch(_ context.Context, jobs []Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range jobs {
		j := jobs[i]
		s.jobs[j.ID] = &j
	}
	return nil
}

func (s *MemoryStore) Due(_ context.Context, now time.Time, limit int) ([]Job, error) {
	s.mu.Lock()
	var out []Job
	for _, j := range s.jobs {
		if !j.Dispatched && !j.FireAt.After(now) {
			out = append(out, *j)
		}
	}
	s.mu.Unlock()

	sortJobs(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkDispatched(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok || j.Dispatched {
		return false, nil
	}
	j.Dispatched = true
	j.DispatchedAt = &at
	return true, nil
}

func (s *MemoryStore) ListByAppointment(_ context.Context, appointmentID uuid.UUID) ([]Job, error) {
	s.mu.Lock()
	var out []Job
	for _, j := range s.jobs {
		if j.AppointmentID == appointmentID {
			out = append(out, *j)
		}
	}
	s.mu.Unlock()

	sortJobs(out)
	return out, nil
}

func (s *MemoryStore) DeletePending(_ context.Context, appointmentID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, j := range s.jobs {
		if j.AppointmentID == appointmentID && !j.Dispatched {
			delete(s.jobs, id)
			n++
		}
	}
	return n, nil
}

func sortJobs(jobs []Job) {
	sort.Slice(jobs, func(i, k int) bool {
		if !jobs[i].FireAt.Equal(jobs[k].FireAt) {
			return jobs[i].FireAt.Before(jobs[k].FireAt)
		}
		return jobs[i].Kind < jobs[k].Kind
	})
}
