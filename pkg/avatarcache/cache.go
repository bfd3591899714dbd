package avatarcache

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/elliotchance/orderedmap/v3"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/AzielCF/az-tgclean/core/config"
	"github.com/AzielCF/az-tgclean/domains/avatar"
	"github.com/AzielCF/az-tgclean/domains/kvstore"
)

// Miss reasons reported to the Observer.
const (
	MissEmptyPhotoID = "empty_photo_id"
	MissAbsent       = "absent"
	MissExpired      = "expired"
	MissMismatch     = "mismatch"
	MissNoData       = "no_data"
	MissCorrupt      = "corrupt"
	MissStorageError = "storage_error"
)

// Hit tiers reported to the Observer.
const (
	TierMemory  = "memory"
	TierStorage = "storage"
)

// Observer receives cache events. Implementations must not block.
type Observer interface {
	Hit(tier string)
	Miss(reason string)
	Evicted(n int)
}

type noopObserver struct{}

func (noopObserver) Hit(string)  {}
func (noopObserver) Miss(string) {}
func (noopObserver) Evicted(int) {}

// Limits bound the cache size and the validity windows.
type Limits struct {
	MaxSize         int
	MaxAge          time.Duration
	MemorySize      int
	EvictionPercent int
	RecheckInterval time.Duration
}

// DefaultLimits returns the production limits.
func DefaultLimits() Limits {
	return Limits{
		MaxSize:         avatar.DefaultMaxSize,
		MaxAge:          avatar.DefaultMaxAge,
		MemorySize:      avatar.DefaultMemorySize,
		EvictionPercent: avatar.DefaultEvictionPercent,
		RecheckInterval: avatar.DefaultRecheckInterval,
	}
}

// LimitsFrom maps the cache config section, keeping defaults for unset values.
func LimitsFrom(cfg config.CacheConfig) Limits {
	l := DefaultLimits()
	if cfg.MaxSize > 0 {
		l.MaxSize = cfg.MaxSize
	}
	if cfg.MaxAge > 0 {
		l.MaxAge = cfg.MaxAge
	}
	if cfg.MemorySize > 0 {
		l.MemorySize = cfg.MemorySize
	}
	if cfg.EvictionPercent > 0 && cfg.EvictionPercent <= 100 {
		l.EvictionPercent = cfg.EvictionPercent
	}
	if cfg.RecheckInterval > 0 {
		l.RecheckInterval = cfg.RecheckInterval
	}
	return l
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithLimits(l Limits) Option {
	return func(c *Cache) { c.limits = l }
}

func WithObserver(o Observer) Option {
	return func(c *Cache) {
		if o != nil {
			c.obs = o
		}
	}
}

// Cache is a two-tier avatar cache: a small LRU mirror in memory in front of a
// persistent key-value store, with a metadata index kept under one key.
//
// All state lives behind mu, including the storage round trips, so a Set is
// visible to the next Get on any goroutine.
type Cache struct {
	store  kvstore.Store
	limits Limits
	now    func() time.Time
	obs    Observer

	mu          sync.Mutex
	initialized bool
	meta        map[string]avatar.Meta
	memory      *orderedmap.OrderedMap[string, avatar.Entry]
}

var _ avatar.Cache = (*Cache)(nil)

// New creates a cache over store. Initialize is lazy; it runs on first use.
func New(store kvstore.Store, opts ...Option) *Cache {
	c := &Cache{
		store:  store,
		limits: DefaultLimits(),
		now:    time.Now,
		obs:    noopObserver{},
		meta:   make(map[string]avatar.Meta),
		memory: orderedmap.NewOrderedMap[string, avatar.Entry](),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize loads the metadata index once. Failures leave the cache empty.
func (c *Cache) Initialize(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initLocked(ctx)
}

func (c *Cache) initLocked(ctx context.Context) {
	if c.initialized {
		return
	}
	c.initialized = true

	raw, found, err := c.store.Get(ctx, avatar.MetadataKey)
	if err != nil {
		logrus.WithError(err).Warn("[AVATAR_CACHE] Failed to load metadata, starting empty")
		return
	}
	if !found {
		return
	}

	meta := make(map[string]avatar.Meta)
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		logrus.WithError(err).Warn("[AVATAR_CACHE] Metadata is malformed, starting empty")
		return
	}
	c.meta = meta
	logrus.Debugf("[AVATAR_CACHE] Loaded metadata for %d chats", len(meta))
}

func (c *Cache) nowMillis() int64 {
	return c.now().UnixMilli()
}

// Get returns the payload cached for chatID if it was produced from currentPhotoID.
//
// A stored photo id that differs from currentPhotoID always invalidates the entry.
// forceCheck (or an elapsed recheck interval) makes the successful comparison
// persist a new lastPhotoIdCheck stamp.
func (c *Cache) Get(ctx context.Context, chatID, currentPhotoID string, forceCheck bool) (string, bool) {
	if currentPhotoID == "" {
		c.obs.Miss(MissEmptyPhotoID)
		return "", false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.initLocked(ctx)

	now := c.nowMillis()
	maxAge := c.limits.MaxAge.Milliseconds()
	checkDue := func(last int64) bool {
		return forceCheck || now-last >= c.limits.RecheckInterval.Milliseconds()
	}

	if e, ok := c.memory.Get(chatID); ok {
		_, indexed := c.meta[chatID]
		if indexed && now-e.Timestamp <= maxAge && e.PhotoID == currentPhotoID {
			if checkDue(e.LastPhotoIDCheck) {
				e.LastPhotoIDCheck = now
				c.stampCheckLocked(ctx, chatID, now)
			}
			c.rememberLocked(chatID, e)
			c.obs.Hit(TierMemory)
			return e.PhotoData, true
		}
	}

	m, ok := c.meta[chatID]
	if !ok {
		c.memory.Delete(chatID)
		c.obs.Miss(MissAbsent)
		return "", false
	}

	if now-m.Timestamp > maxAge {
		logrus.Debugf("[AVATAR_CACHE] Entry for %s expired", chatID)
		c.deleteLocked(ctx, chatID)
		c.obs.Miss(MissExpired)
		return "", false
	}

	if m.PhotoID != currentPhotoID {
		logrus.Debugf("[AVATAR_CACHE] Photo changed for %s (%s -> %s)", chatID, m.PhotoID, currentPhotoID)
		c.deleteLocked(ctx, chatID)
		c.obs.Miss(MissMismatch)
		return "", false
	}

	if checkDue(m.LastPhotoIDCheck) {
		m.LastPhotoIDCheck = now
		c.stampCheckLocked(ctx, chatID, now)
	}

	raw, found, err := c.store.Get(ctx, avatar.EntryKey(chatID))
	if err != nil {
		logrus.WithError(err).Warnf("[AVATAR_CACHE] Failed to read entry for %s", chatID)
		c.obs.Miss(MissStorageError)
		return "", false
	}
	if !found {
		delete(c.meta, chatID)
		c.memory.Delete(chatID)
		c.saveMetaLocked(ctx)
		c.obs.Miss(MissNoData)
		return "", false
	}

	var e avatar.Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		logrus.WithError(err).Warnf("[AVATAR_CACHE] Entry for %s is malformed, dropping it", chatID)
		c.deleteLocked(ctx, chatID)
		c.obs.Miss(MissCorrupt)
		return "", false
	}
	e.LastPhotoIDCheck = m.LastPhotoIDCheck

	c.rememberLocked(chatID, e)
	c.obs.Hit(TierStorage)
	return e.PhotoData, true
}

// Set upserts the avatar of chatID. Storage failures drop the write.
func (c *Cache) Set(ctx context.Context, chatID, photoID, payload string) {
	if chatID == "" || photoID == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.initLocked(ctx)

	now := c.nowMillis()
	e := avatar.Entry{
		ChatID:           chatID,
		PhotoID:          photoID,
		PhotoData:        payload,
		Timestamp:        now,
		LastPhotoIDCheck: now,
	}

	data, err := json.Marshal(e)
	if err != nil {
		logrus.WithError(err).Errorf("[AVATAR_CACHE] Failed to encode entry for %s", chatID)
		return
	}
	if err := c.store.Set(ctx, avatar.EntryKey(chatID), string(data)); err != nil {
		logrus.WithError(err).Errorf("[AVATAR_CACHE] Failed to save entry for %s", chatID)
		return
	}

	c.meta[chatID] = avatar.Meta{PhotoID: photoID, Timestamp: now, LastPhotoIDCheck: now}
	c.rememberLocked(chatID, e)

	if len(c.meta) > c.limits.MaxSize {
		c.evictLocked(ctx)
	}
	c.saveMetaLocked(ctx)
}

// Delete drops the entry of chatID from every tier.
func (c *Cache) Delete(ctx context.Context, chatID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initLocked(ctx)
	c.deleteLocked(ctx, chatID)
}

func (c *Cache) deleteLocked(ctx context.Context, chatID string) {
	if err := c.store.Remove(ctx, avatar.EntryKey(chatID)); err != nil {
		logrus.WithError(err).Warnf("[AVATAR_CACHE] Failed to remove entry for %s", chatID)
	}
	delete(c.meta, chatID)
	c.memory.Delete(chatID)
	c.saveMetaLocked(ctx)
}

// Clear removes every indexed entry and the index itself.
func (c *Cache) Clear(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initLocked(ctx)

	keys := lo.MapToSlice(c.meta, func(chatID string, _ avatar.Meta) string {
		return avatar.EntryKey(chatID)
	})
	keys = append(keys, avatar.MetadataKey)

	if err := c.store.MultiRemove(ctx, keys); err != nil {
		logrus.WithError(err).Warn("[AVATAR_CACHE] Failed to clear storage")
	}
	c.meta = make(map[string]avatar.Meta)
	c.memory = orderedmap.NewOrderedMap[string, avatar.Entry]()
	logrus.Infof("[AVATAR_CACHE] Cleared %d entries", len(keys)-1)
}

// Stats reports the current occupancy.
func (c *Cache) Stats(ctx context.Context) avatar.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initLocked(ctx)

	bytes := 0
	for el := c.memory.Front(); el != nil; el = el.Next() {
		bytes += len(el.Value.PhotoData)
	}

	return avatar.Stats{
		Size:        len(c.meta),
		MaxSize:     c.limits.MaxSize,
		MaxAge:      c.limits.MaxAge,
		MaxAgeMs:    c.limits.MaxAge.Milliseconds(),
		MemorySize:  c.memory.Len(),
		MemoryBytes: bytes,
	}
}

// evictLocked removes the oldest EvictionPercent of MaxSize entries in one batch.
func (c *Cache) evictLocked(ctx context.Context) {
	n := c.limits.MaxSize * c.limits.EvictionPercent / 100
	if n < 1 {
		n = 1
	}

	type aged struct {
		chatID    string
		timestamp int64
	}
	all := lo.MapToSlice(c.meta, func(chatID string, m avatar.Meta) aged {
		return aged{chatID: chatID, timestamp: m.Timestamp}
	})
	sort.Slice(all, func(i, j int) bool {
		if all[i].timestamp == all[j].timestamp {
			return all[i].chatID < all[j].chatID
		}
		return all[i].timestamp < all[j].timestamp
	})
	if n > len(all) {
		n = len(all)
	}

	victims := all[:n]
	keys := lo.Map(victims, func(v aged, _ int) string { return avatar.EntryKey(v.chatID) })
	if err := c.store.MultiRemove(ctx, keys); err != nil {
		logrus.WithError(err).Warnf("[AVATAR_CACHE] Failed to remove %d evicted entries", len(keys))
	}
	for _, v := range victims {
		delete(c.meta, v.chatID)
		c.memory.Delete(v.chatID)
	}

	c.obs.Evicted(n)
	logrus.Infof("[AVATAR_CACHE] Evicted %d oldest entries, %d remain", n, len(c.meta))
}

// rememberLocked moves chatID to the most recent end of the memory mirror.
func (c *Cache) rememberLocked(chatID string, e avatar.Entry) {
	c.memory.Delete(chatID)
	c.memory.Set(chatID, e)
	for c.memory.Len() > c.limits.MemorySize {
		oldest := c.memory.Front()
		if oldest == nil {
			break
		}
		c.memory.Delete(oldest.Key)
	}
}

func (c *Cache) stampCheckLocked(ctx context.Context, chatID string, now int64) {
	m, ok := c.meta[chatID]
	if !ok {
		return
	}
	m.LastPhotoIDCheck = now
	c.meta[chatID] = m
	c.saveMetaLocked(ctx)
}

func (c *Cache) saveMetaLocked(ctx context.Context) {
	data, err := json.Marshal(c.meta)
	if err != nil {
		logrus.WithError(err).Error("[AVATAR_CACHE] Failed to encode metadata")
		return
	}
	if err := c.store.Set(ctx, avatar.MetadataKey, string(data)); err != nil {
		logrus.WithError(err).Warn("[AVATAR_CACHE] Failed to save metadata")
	}
}
