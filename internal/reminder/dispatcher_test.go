package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/notify"
)

type recordingNotifier struct {
	mu   sync.Mutex
	reqs []notify.Request
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, req notify.Request) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reqs = append(n.reqs, req)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.reqs)
}

func TestDispatcherSendsDueOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := NewScheduler(store, defaultOffsets, zap.NewNop(), WithClock(fixedClock))

	tg := target(25 * time.Hour)
	_, err := s.Schedule(ctx, tg)
	require.NoError(t, err)

	n := &recordingNotifier{}
	d := NewDispatcher(store, n, zap.NewNop())

	// one hour later only the 24h reminder is due
	d.now = func() time.Time { return now.Add(time.Hour) }
	sent, err := d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Equal(t, 2, n.count(), "email and sms")
	assert.Equal(t, notify.TemplateReminder, n.reqs[0].Template)
	assert.Equal(t, "24h", n.reqs[0].Payload["kind"])
	assert.Equal(t, "Dr. Patel", n.reqs[0].Payload["provider"])

	sent, err = d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Equal(t, 2, n.count())
}

func TestDispatcherConcurrentRunsClaimOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := NewScheduler(store, defaultOffsets, zap.NewNop(), WithClock(fixedClock))
	_, err := s.Schedule(ctx, target(25*time.Hour))
	require.NoError(t, err)

	n := &recordingNotifier{}
	later := func() time.Time { return now.Add(25 * time.Hour) }

	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d := NewDispatcher(store, n, zap.NewNop())
			d.now = later
			c, err := d.RunOnce(ctx)
			assert.NoError(t, err)
			mu.Lock()
			total += c
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, total)
	assert.Equal(t, 6, n.count())
}

func TestDispatcherNotifierFailureStillMarks(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := NewScheduler(store, []time.Duration{time.Hour}, zap.NewNop(), WithClock(fixedClock))
	tg := target(2 * time.Hour)
	_, err := s.Schedule(ctx, tg)
	require.NoError(t, err)

	d := NewDispatcher(store, &recordingNotifier{err: errors.New("queue down")}, zap.NewNop())
	d.now = func() time.Time { return now.Add(90 * time.Minute) }

	sent, err := d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	jobs, err := store.ListByAppointment(ctx, tg.AppointmentID)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.True(t, jobs[0].Dispatched)
}
