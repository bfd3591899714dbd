package avatarcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AzielCF/az-tgclean/domains/avatar"
	"github.com/AzielCF/az-tgclean/infrastructure/kvstore"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// spyStore counts calls and can be told to fail.
type spyStore struct {
	*kvstore.MemoryStore
	calls   atomic.Int64
	failAll atomic.Bool
}

func newSpyStore() *spyStore {
	return &spyStore{MemoryStore: kvstore.NewMemoryStore()}
}

var errBroken = errors.New("disk on fire")

func (s *spyStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.calls.Add(1)
	if s.failAll.Load() {
		return "", false, errBroken
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *spyStore) Set(ctx context.Context, key, value string) error {
	s.calls.Add(1)
	if s.failAll.Load() {
		return errBroken
	}
	return s.MemoryStore.Set(ctx, key, value)
}

func (s *spyStore) Remove(ctx context.Context, key string) error {
	s.calls.Add(1)
	if s.failAll.Load() {
		return errBroken
	}
	return s.MemoryStore.Remove(ctx, key)
}

func (s *spyStore) MultiRemove(ctx context.Context, keys []string) error {
	s.calls.Add(1)
	if s.failAll.Load() {
		return errBroken
	}
	return s.MemoryStore.MultiRemove(ctx, keys)
}

func newTestCache(store *spyStore, clock *fakeClock) *Cache {
	return New(store, WithClock(clock.Now))
}

func TestCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(newSpyStore(), newFakeClock())

	c.Set(ctx, "c1", "p1", "data:image/jpeg;base64,AAA")
	got, ok := c.Get(ctx, "c1", "p1", false)
	require.True(t, ok)
	assert.Equal(t, "data:image/jpeg;base64,AAA", got)

	_, ok = c.Get(ctx, "c2", "p1", false)
	assert.False(t, ok)
}

func TestCache_PhotoChangeInvalidates(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := newTestCache(newSpyStore(), clock)

	c.Set(ctx, "c1", "v1", "old")

	_, ok := c.Get(ctx, "c1", "v2", true)
	assert.False(t, ok, "forced check with a new photo id must miss")

	_, ok = c.Get(ctx, "c1", "v1", false)
	assert.False(t, ok, "the invalidated entry is gone")
	assert.Equal(t, 0, c.Stats(ctx).Size)
}

func TestCache_PhotoChangeInvalidatesAfterRecheckInterval(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := newTestCache(newSpyStore(), clock)

	c.Set(ctx, "c1", "v1", "old")
	clock.Advance(25 * time.Hour)

	_, ok := c.Get(ctx, "c1", "v2", false)
	assert.False(t, ok)
	_, ok = c.Get(ctx, "c1", "v1", false)
	assert.False(t, ok)
}

func TestCache_UpsertReplacesPhoto(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(newSpyStore(), newFakeClock())

	c.Set(ctx, "c1", "p1", "X")
	c.Set(ctx, "c1", "p2", "Y")

	got, ok := c.Get(ctx, "c1", "p2", false)
	require.True(t, ok)
	assert.Equal(t, "Y", got)

	_, ok = c.Get(ctx, "c1", "p1", false)
	assert.False(t, ok, "the old photo id no longer matches")
}

func TestCache_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newSpyStore()
	c := newTestCache(store, clock)

	c.Set(ctx, "c1", "p1", "X")

	clock.Advance(30 * 24 * time.Hour)
	_, ok := c.Get(ctx, "c1", "p1", false)
	assert.True(t, ok, "exactly MAX_AGE old is still valid")

	clock.Advance(time.Millisecond)
	_, ok = c.Get(ctx, "c1", "p1", false)
	assert.False(t, ok)

	_, found, _ := store.MemoryStore.Get(ctx, avatar.EntryKey("c1"))
	assert.False(t, found, "expired entries are removed from storage")
}

func TestCache_EvictsOldestFifthOverCapacity(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := newTestCache(newSpyStore(), clock)

	for i := 1; i <= 201; i++ {
		c.Set(ctx, fmt.Sprintf("chat%d", i), "p", "payload")
		clock.Advance(time.Millisecond)
	}

	stats := c.Stats(ctx)
	assert.Equal(t, 161, stats.Size)

	for i := 1; i <= 40; i++ {
		_, ok := c.Get(ctx, fmt.Sprintf("chat%d", i), "p", false)
		assert.False(t, ok, "chat%d should be evicted", i)
	}
	for i := 41; i <= 201; i++ {
		_, ok := c.Get(ctx, fmt.Sprintf("chat%d", i), "p", false)
		assert.True(t, ok, "chat%d should survive", i)
	}
}

func TestCache_NoEvictionAtCapacity(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := newTestCache(newSpyStore(), clock)

	for i := 1; i <= 200; i++ {
		c.Set(ctx, fmt.Sprintf("chat%d", i), "p", "payload")
		clock.Advance(time.Millisecond)
	}
	assert.Equal(t, 200, c.Stats(ctx).Size)
}

func TestCache_StatsEncodeMaxAgeInMillis(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(newSpyStore(), newFakeClock())
	c.Set(ctx, "chat1", "p", "payload")

	data, err := json.Marshal(c.Stats(ctx))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, float64(30*24*3600*1000), got["maxAgeMs"])
	assert.NotContains(t, got, "maxAge")
	assert.Equal(t, float64(1), got["size"])
}

func TestCache_OverflowKeepsNewest(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := newTestCache(newSpyStore(), clock)

	for i := 1; i <= 250; i++ {
		c.Set(ctx, fmt.Sprintf("chat%d", i), "p", "payload")
		clock.Advance(time.Millisecond)
	}

	assert.LessOrEqual(t, c.Stats(ctx).Size, 200)
	_, ok := c.Get(ctx, "chat1", "p", false)
	assert.False(t, ok)
	_, ok = c.Get(ctx, "chat250", "p", false)
	assert.True(t, ok)
}

func TestCache_EmptyPhotoIDNeverTouchesStorage(t *testing.T) {
	ctx := context.Background()
	store := newSpyStore()
	c := newTestCache(store, newFakeClock())

	_, ok := c.Get(ctx, "c1", "", false)
	assert.False(t, ok)
	_, ok = c.Get(ctx, "c1", "", true)
	assert.False(t, ok)
	assert.Equal(t, int64(0), store.calls.Load())
}

func TestCache_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newSpyStore()

	first := newTestCache(store, clock)
	first.Set(ctx, "c1", "p1", "X")

	second := newTestCache(store, clock)
	got, ok := second.Get(ctx, "c1", "p1", false)
	require.True(t, ok)
	assert.Equal(t, "X", got)
	assert.Equal(t, 1, second.Stats(ctx).Size)
}

func TestCache_StorageFailuresDegrade(t *testing.T) {
	ctx := context.Background()
	store := newSpyStore()
	store.failAll.Store(true)
	c := newTestCache(store, newFakeClock())

	assert.NotPanics(t, func() {
		c.Initialize(ctx)
		c.Set(ctx, "c1", "p1", "X")
		c.Delete(ctx, "c1")
		c.Clear(ctx)
	})
	_, ok := c.Get(ctx, "c1", "p1", false)
	assert.False(t, ok, "a dropped write reads back as a miss")
	assert.Equal(t, 0, c.Stats(ctx).Size)
}

func TestCache_ReadErrorIsMiss(t *testing.T) {
	ctx := context.Background()
	store := newSpyStore()
	clock := newFakeClock()

	newTestCache(store, clock).Set(ctx, "c1", "p1", "X")

	c := newTestCache(store, clock)
	c.Initialize(ctx)
	store.failAll.Store(true)

	_, ok := c.Get(ctx, "c1", "p1", false)
	assert.False(t, ok)
}

func TestCache_MissingDataDropsIndex(t *testing.T) {
	ctx := context.Background()
	store := newSpyStore()
	clock := newFakeClock()

	newTestCache(store, clock).Set(ctx, "c1", "p1", "X")
	require.NoError(t, store.MemoryStore.Remove(ctx, avatar.EntryKey("c1")))

	c := newTestCache(store, clock)
	_, ok := c.Get(ctx, "c1", "p1", false)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Stats(ctx).Size)

	raw, _, _ := store.MemoryStore.Get(ctx, avatar.MetadataKey)
	assert.NotContains(t, raw, "c1")
}

func TestCache_MalformedEntryIsDeleted(t *testing.T) {
	ctx := context.Background()
	store := newSpyStore()
	clock := newFakeClock()

	newTestCache(store, clock).Set(ctx, "c1", "p1", "X")
	require.NoError(t, store.MemoryStore.Set(ctx, avatar.EntryKey("c1"), "{not json"))

	c := newTestCache(store, clock)
	_, ok := c.Get(ctx, "c1", "p1", false)
	assert.False(t, ok)

	_, found, _ := store.MemoryStore.Get(ctx, avatar.EntryKey("c1"))
	assert.False(t, found)
}

func TestCache_MalformedMetadataStartsEmpty(t *testing.T) {
	ctx := context.Background()
	store := newSpyStore()
	require.NoError(t, store.MemoryStore.Set(ctx, avatar.MetadataKey, "[[["))

	c := newTestCache(store, newFakeClock())
	c.Initialize(ctx)
	assert.Equal(t, 0, c.Stats(ctx).Size)

	c.Set(ctx, "c1", "p1", "X")
	_, ok := c.Get(ctx, "c1", "p1", false)
	assert.True(t, ok)
}

func TestCache_PersistedFormat(t *testing.T) {
	ctx := context.Background()
	store := newSpyStore()
	clock := newFakeClock()
	c := newTestCache(store, clock)

	c.Set(ctx, "c1", "p1", "X")

	raw, found, err := store.MemoryStore.Get(ctx, "@avatar_cache:c1")
	require.NoError(t, err)
	require.True(t, found)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &entry))
	assert.Equal(t, "c1", entry["chatId"])
	assert.Equal(t, "p1", entry["photoId"])
	assert.Equal(t, "X", entry["photoData"])
	assert.Equal(t, float64(clock.Now().UnixMilli()), entry["timestamp"])
	assert.Equal(t, float64(clock.Now().UnixMilli()), entry["lastPhotoIdCheck"])

	raw, found, err = store.MemoryStore.Get(ctx, "@avatar_cache_metadata")
	require.NoError(t, err)
	require.True(t, found)

	var meta map[string]avatar.Meta
	require.NoError(t, json.Unmarshal([]byte(raw), &meta))
	assert.Equal(t, "p1", meta["c1"].PhotoID)
}

func TestCache_RecheckStampsMetadata(t *testing.T) {
	ctx := context.Background()
	store := newSpyStore()
	clock := newFakeClock()
	c := newTestCache(store, clock)

	c.Set(ctx, "c1", "p1", "X")
	created := clock.Now().UnixMilli()

	clock.Advance(time.Hour)
	_, ok := c.Get(ctx, "c1", "p1", false)
	require.True(t, ok)
	assert.Equal(t, created, readMeta(t, store)["c1"].LastPhotoIDCheck, "no stamp inside the interval")

	clock.Advance(24 * time.Hour)
	_, ok = c.Get(ctx, "c1", "p1", false)
	require.True(t, ok)
	assert.Equal(t, clock.Now().UnixMilli(), readMeta(t, store)["c1"].LastPhotoIDCheck)

	clock.Advance(time.Minute)
	_, ok = c.Get(ctx, "c1", "p1", true)
	require.True(t, ok)
	assert.Equal(t, clock.Now().UnixMilli(), readMeta(t, store)["c1"].LastPhotoIDCheck, "forced check stamps too")
}

func readMeta(t *testing.T, store *spyStore) map[string]avatar.Meta {
	t.Helper()
	raw, _, err := store.MemoryStore.Get(context.Background(), avatar.MetadataKey)
	require.NoError(t, err)
	meta := map[string]avatar.Meta{}
	require.NoError(t, json.Unmarshal([]byte(raw), &meta))
	return meta
}

func TestCache_MemoryMirrorIsBounded(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := newTestCache(newSpyStore(), clock)

	for i := 0; i < 80; i++ {
		c.Set(ctx, fmt.Sprintf("chat%d", i), "p", "12345")
		clock.Advance(time.Millisecond)
	}

	stats := c.Stats(ctx)
	assert.Equal(t, 80, stats.Size)
	assert.Equal(t, 50, stats.MemorySize)
	assert.Equal(t, 50*5, stats.MemoryBytes)

	// Entries pushed out of memory are still served from storage.
	got, ok := c.Get(ctx, "chat0", "p", false)
	require.True(t, ok)
	assert.Equal(t, "12345", got)
}

func TestCache_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	store := newSpyStore()
	c := newTestCache(store, newFakeClock())

	c.Set(ctx, "c1", "p1", "X")
	c.Set(ctx, "c2", "p2", "Y")

	c.Delete(ctx, "c1")
	_, ok := c.Get(ctx, "c1", "p1", false)
	assert.False(t, ok)

	c.Clear(ctx)
	_, ok = c.Get(ctx, "c2", "p2", false)
	assert.False(t, ok)
	assert.Equal(t, 0, store.MemoryStore.Len())
}

func TestCache_ConcurrentUse(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(newSpyStore(), newFakeClock())

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("chat%d", i)
			c.Initialize(ctx)
			c.Set(ctx, id, "p", id)
			got, ok := c.Get(ctx, id, "p", false)
			assert.True(t, ok)
			assert.Equal(t, id, got)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 30, c.Stats(ctx).Size)
}

type countingObserver struct {
	hits, misses, evicted atomic.Int64
}

func (o *countingObserver) Hit(string)  { o.hits.Add(1) }
func (o *countingObserver) Miss(string) { o.misses.Add(1) }
func (o *countingObserver) Evicted(n int) {
	o.evicted.Add(int64(n))
}

func TestCache_ObserverAndLimits(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	obs := &countingObserver{}
	limits := DefaultLimits()
	limits.MaxSize = 10
	c := New(newSpyStore(), WithClock(clock.Now), WithObserver(obs), WithLimits(limits))

	for i := 0; i < 11; i++ {
		c.Set(ctx, fmt.Sprintf("chat%d", i), "p", "x")
		clock.Advance(time.Millisecond)
	}
	c.Get(ctx, "chat10", "p", false)
	c.Get(ctx, "chat0", "p", false)

	assert.Equal(t, int64(2), obs.evicted.Load(), "20 percent of 10")
	assert.Equal(t, int64(1), obs.hits.Load())
	assert.Equal(t, int64(1), obs.misses.Load())
	assert.Equal(t, 9, c.Stats(ctx).Size)
}
