package botcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dreambook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type storeStub struct {
	mu    sync.Mutex
	bots  map[string]models.Bot
	calls int
	err   error
}

func newStoreStub(bots ...models.Bot) *storeStub {
	s := &storeStub{bots: map[string]models.Bot{}}
	for _, b := range bots {
		s.bots[b.APIKey] = b
	}
	return s
}

func (s *storeStub) FindByAPIKey(_ context.Context, apiKey string) (*models.Bot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	b, ok := s.bots[apiKey]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &b, nil
}

func (s *storeStub) set(b models.Bot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bots[b.APIKey] = b
}

func (s *storeStub) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func TestResolve_CachesHits(t *testing.T) {
	t.Parallel()
	store := newStoreStub(models.Bot{ID: "b1", Name: "Luna", APIKey: "db_k1"})
	c := New(store)

	for i := 0; i < 3; i++ {
		bot, err := c.Resolve(context.Background(), "db_k1")
		require.NoError(t, err)
		assert.Equal(t, "b1", bot.ID)
	}
	assert.Equal(t, 1, store.callCount())
}

func TestResolve_DoesNotCacheMisses(t *testing.T) {
	t.Parallel()
	store := newStoreStub()
	c := New(store)

	_, err := c.Resolve(context.Background(), "db_missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.Resolve(context.Background(), "db_missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 2, store.callCount())
	assert.Equal(t, 0, c.Len())

	store.set(models.Bot{ID: "b2", APIKey: "db_missing"})
	bot, err := c.Resolve(context.Background(), "db_missing")
	require.NoError(t, err)
	assert.Equal(t, "b2", bot.ID)
}

func TestResolve_ExpiresAfterTTL(t *testing.T) {
	t.Parallel()
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	store := newStoreStub(models.Bot{ID: "b1", APIKey: "k"})
	c := New(store, WithClock(clk.Now), WithTTL(5*time.Minute))

	_, err := c.Resolve(context.Background(), "k")
	require.NoError(t, err)
	clk.now = clk.now.Add(4 * time.Minute)
	_, _ = c.Resolve(context.Background(), "k")
	assert.Equal(t, 1, store.callCount())

	clk.now = clk.now.Add(time.Minute)
	_, _ = c.Resolve(context.Background(), "k")
	assert.Equal(t, 2, store.callCount())
}

func TestInvalidate_NextResolveSeesStore(t *testing.T) {
	t.Parallel()
	store := newStoreStub(models.Bot{ID: "b1", APIKey: "k", Claimed: false})
	c := New(store)

	bot, err := c.Resolve(context.Background(), "k")
	require.NoError(t, err)
	require.False(t, bot.Claimed)

	store.set(models.Bot{ID: "b1", APIKey: "k", Claimed: true})
	bot, _ = c.Resolve(context.Background(), "k")
	assert.False(t, bot.Claimed, "stale until invalidated")

	c.Invalidate("k")
	bot, err = c.Resolve(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, bot.Claimed)
}

// updatingStore returns its snapshot, then runs afterRead before handing it back.
type updatingStore struct {
	*storeStub
	afterRead func()
}

func (s *updatingStore) FindByAPIKey(ctx context.Context, apiKey string) (*models.Bot, error) {
	bot, err := s.storeStub.FindByAPIKey(ctx, apiKey)
	if hook := s.afterRead; hook != nil {
		s.afterRead = nil
		hook()
	}
	return bot, err
}

func TestInvalidate_DuringMissDropsInFlightSnapshot(t *testing.T) {
	t.Parallel()
	store := &updatingStore{storeStub: newStoreStub(models.Bot{ID: "b1", APIKey: "k", Claimed: false})}
	c := New(store)

	// The claim commits and invalidates while the unclaimed row is in flight.
	store.afterRead = func() {
		store.set(models.Bot{ID: "b1", APIKey: "k", Claimed: true})
		c.Invalidate("k")
	}
	bot, err := c.Resolve(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, bot.Claimed)
	assert.Equal(t, 0, c.Len())

	bot, err = c.Resolve(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, bot.Claimed)
	assert.Equal(t, 2, store.callCount())

	_, err = c.Resolve(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, 2, store.callCount(), "later reads are cached again")
}

func TestResolve_EvictsOldestInsertion(t *testing.T) {
	t.Parallel()
	store := newStoreStub(
		models.Bot{ID: "1", APIKey: "a"},
		models.Bot{ID: "2", APIKey: "b"},
		models.Bot{ID: "3", APIKey: "c"},
	)
	c := New(store, WithMaxEntries(2))
	ctx := context.Background()

	_, _ = c.Resolve(ctx, "a")
	_, _ = c.Resolve(ctx, "b")
	_, _ = c.Resolve(ctx, "a") // hit, does not refresh insertion order
	_, _ = c.Resolve(ctx, "c")
	require.Equal(t, 2, c.Len())
	require.Equal(t, 3, store.callCount())

	_, _ = c.Resolve(ctx, "b")
	assert.Equal(t, 3, store.callCount(), "b survived")
	_, _ = c.Resolve(ctx, "a")
	assert.Equal(t, 4, store.callCount(), "a was evicted")
}

func TestResolve_ReturnsCopies(t *testing.T) {
	t.Parallel()
	store := newStoreStub(models.Bot{ID: "1", Name: "orig", APIKey: "a"})
	c := New(store)

	bot, _ := c.Resolve(context.Background(), "a")
	bot.Name = "mutated"
	again, _ := c.Resolve(context.Background(), "a")
	assert.Equal(t, "orig", again.Name)
}

func TestResolve_StoreErrorIsNotNotFound(t *testing.T) {
	t.Parallel()
	store := newStoreStub()
	store.err = errors.New("database is locked")
	c := New(store)

	_, err := c.Resolve(context.Background(), "a")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestObserverSeesOutcomes(t *testing.T) {
	t.Parallel()
	var got []string
	store := newStoreStub(models.Bot{ID: "1", APIKey: "a"})
	c := New(store, WithObserver(func(r string) { got = append(got, r) }))

	_, _ = c.Resolve(context.Background(), "a")
	_, _ = c.Resolve(context.Background(), "a")
	_, _ = c.Resolve(context.Background(), "zzz")
	assert.Equal(t, []string{"miss", "hit", "not_found"}, got)
}

func TestExtractAPIKey(t *testing.T) {
	t.Parallel()
	tests := []struct {
		header string
		key    string
		err    error
	}{
		{header: "Bearer db_abc", key: "db_abc"},
		{header: "", err: ErrMissingAuthorization},
		{header: "Basic abc", err: ErrMissingAuthorization},
		{header: "Bearer ", err: ErrMissingAuthorization},
		{header: "bearer db_abc", err: ErrMissingAuthorization},
	}
	for _, tt := range tests {
		key, err := ExtractAPIKey(tt.header)
		if tt.err != nil {
			assert.ErrorIs(t, err, tt.err, tt.header)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.key, key)
	}
}
