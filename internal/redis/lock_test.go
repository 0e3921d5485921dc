package redisclient

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests need a real Redis; set TEST_REDIS_ADDR to run them.
func testLocker(t *testing.T) *SlotLocker {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client, err := NewRedisClient(context.Background(), Options{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewSlotLocker(client, 2*time.Second)
}

func TestSlotLockIsExclusive(t *testing.T) {
	l := testLocker(t)
	slotID := uuid.New()

	var entered, refused atomic.Int32
	release := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.WithSlotLock(context.Background(), slotID, func(context.Context) error {
				entered.Add(1)
				<-release
				return nil
			})
			if errors.Is(err, ErrLockNotAcquired) {
				refused.Add(1)
			}
		}()
	}

	require.Eventually(t, func() bool { return entered.Load()+refused.Load() == 10 || refused.Load() == 9 }, time.Second, 10*time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), entered.Load())
	assert.Equal(t, int32(9), refused.Load())
}

func TestSlotLockReleasedAfterError(t *testing.T) {
	l := testLocker(t)
	slotID := uuid.New()
	boom := errors.New("boom")

	err := l.WithSlotLock(context.Background(), slotID, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	err = l.WithSlotLock(context.Background(), slotID, func(context.Context) error { return nil })
	assert.NoError(t, err)
}
