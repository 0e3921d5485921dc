package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestResolver(t *testing.T) (*Resolver, *MemoryStore) {
	t.Helper()
	dates, err := DateParserFor("mdy")
	require.NoError(t, err)
	store := NewMemoryStore()
	return NewResolver(store, dates, zap.NewNop()), store
}

func TestResolveIsStableAcrossNameSpellings(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	assert.False(t, r.Resolve(ctx, "John Smith", "01/02/1980").Existing())

	registered, err := r.Register(ctx, Patient{
		FullName:    "John Smith",
		DateOfBirth: day(1980, time.January, 2),
		Phone:       "555-0100",
		Email:       "JOHN@EXAMPLE.COM ",
	})
	require.NoError(t, err)
	assert.Equal(t, "john@example.com", registered.Email)
	assert.Empty(t, registered.VisitHistory)

	for _, name := range []string{"John Smith", "john   smith", "Mr. John Smith Jr."} {
		res := r.Resolve(ctx, name, "01/02/1980")
		require.True(t, res.Existing(), name)
		assert.Equal(t, registered.ID, res.Patient.ID, name)
		assert.Equal(t, MatchExact, res.Match, name)
	}
}

func TestResolvePartialMatchNeedsTwoTokensAndSameDOB(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	p, err := r.Register(ctx, Patient{FullName: "John Michael Smith", DateOfBirth: day(1980, time.January, 2)})
	require.NoError(t, err)

	res := r.Resolve(ctx, "John Smith", "1980-01-02")
	require.True(t, res.Existing())
	assert.Equal(t, MatchPartial, res.Match)
	assert.Equal(t, p.ID, res.Patient.ID)

	assert.False(t, r.Resolve(ctx, "John Smyth", "01/02/1980").Existing())
	assert.False(t, r.Resolve(ctx, "John Smith", "01/03/1980").Existing())
}

func TestResolveExactPassBeatsEarlierPartial(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()
	dob := day(1975, time.June, 9)

	_, err := r.Register(ctx, Patient{FullName: "Ana Maria Lopez", DateOfBirth: dob})
	require.NoError(t, err)
	exact, err := r.Register(ctx, Patient{FullName: "Ana Lopez", DateOfBirth: dob})
	require.NoError(t, err)

	res := r.ResolveDate(ctx, "ana lopez", dob)
	require.True(t, res.Existing())
	assert.Equal(t, exact.ID, res.Patient.ID)
}

func TestResolveFirstInsertedWinsWithinPass(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()
	dob := day(1990, time.March, 3)

	first, err := r.Register(ctx, Patient{FullName: "Lee Kim Park", DateOfBirth: dob})
	require.NoError(t, err)
	_, err = r.Register(ctx, Patient{FullName: "Lee Kim Choi", DateOfBirth: dob})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		res := r.ResolveDate(ctx, "Lee Kim", dob)
		require.True(t, res.Existing())
		assert.Equal(t, first.ID, res.Patient.ID)
	}
}

func TestResolveFailsSoft(t *testing.T) {
	dates, err := DateParserFor("mdy")
	require.NoError(t, err)
	r := NewResolver(failingStore{}, dates, zap.NewNop())

	res := r.Resolve(context.Background(), "John Smith", "01/02/1980")
	assert.False(t, res.Existing())
	assert.Equal(t, MatchNone, res.Match)

	res = r.Resolve(context.Background(), "John Smith", "not a date")
	assert.False(t, res.Existing())
}

func TestRecordVisitAppends(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	p, err := r.Register(ctx, Patient{FullName: "Sam Stone", DateOfBirth: day(2000, time.July, 1)})
	require.NoError(t, err)

	visit := time.Date(2026, time.October, 20, 14, 30, 0, 0, time.UTC)
	updated, err := r.RecordVisit(ctx, p.ID, visit)
	require.NoError(t, err)
	require.Len(t, updated.VisitHistory, 1)
	assert.True(t, day(2026, time.October, 20).Equal(updated.VisitHistory[0]))

	_, err = r.RecordVisit(ctx, uuid.New(), visit)
	assert.ErrorIs(t, err, ErrPatientNotFound)
}

func TestResolverConcurrentReads(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()
	p, err := r.Register(ctx, Patient{FullName: "Concurrent Reader", DateOfBirth: day(1980, time.January, 2)})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := r.Resolve(ctx, "concurrent reader", "01/02/1980")
			assert.Equal(t, p.ID, res.Patient.ID)
		}()
	}
	wg.Wait()
}

func TestSearch(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()
	_, err := r.Register(ctx, Patient{FullName: "Priya Raman", Phone: "98450 12345", Email: "priya@example.com"})
	require.NoError(t, err)
	_, err = r.Register(ctx, Patient{FullName: "Tom Hardy", Phone: "555-0199", Email: "tom@example.com"})
	require.NoError(t, err)

	got, err := r.Search(ctx, "PRIYA", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Priya Raman", got[0].FullName)

	got, err = r.Search(ctx, "555-01", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)

	got, err = r.Search(ctx, "  ", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

type failingStore struct{}

var errStoreDown = errors.New("store down")

func (failingStore) ListByDateOfBirth(context.Context, time.Time) ([]Patient, error) {
	return nil, errStoreDown
}
func (failingStore) Get(context.Context, uuid.UUID) (*Patient, error) { return nil, errStoreDown }
func (failingStore) Create(context.Context, *Patient) error          { return errStoreDown }
func (failingStore) AppendVisit(context.Context, uuid.UUID, time.Time) (*Patient, error) {
	return nil, errStoreDown
}
func (failingStore) Search(context.Context, string, int) ([]Patient, error) {
	return nil, errStoreDown
}

func TestRegisterRejectsSameIdentity(t *testing.T) {
	r, store := newTestResolver(t)
	ctx := context.Background()
	dob := day(1980, time.January, 2)

	first, err := r.Register(ctx, Patient{
		FullName:     "John Smith",
		DateOfBirth:  dob,
		VisitHistory: []time.Time{time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(2026, time.October, 19)}, first.VisitHistory)

	_, err = r.Register(ctx, Patient{FullName: "Mr. john  SMITH", DateOfBirth: dob})
	assert.ErrorIs(t, err, ErrPatientExists)

	_, err = r.Register(ctx, Patient{FullName: "John Smith", DateOfBirth: day(1980, time.January, 3)})
	assert.NoError(t, err)

	found, err := store.ListByDateOfBirth(ctx, dob)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, first.ID, found[0].ID)
}
