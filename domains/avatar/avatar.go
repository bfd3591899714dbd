package avatar

import (
	"context"
	"time"
)

// Storage keys shared with earlier installs; changing them orphans persisted data.
const (
	EntryKeyPrefix = "@avatar_cache:"
	MetadataKey    = "@avatar_cache_metadata"
)

// Default limits.
const (
	DefaultMaxSize         = 200
	DefaultMaxAge          = 30 * 24 * time.Hour
	DefaultMemorySize      = 50
	DefaultEvictionPercent = 20
	DefaultRecheckInterval = 24 * time.Hour
)

// Entry is the persisted form of one cached avatar.
// Timestamps are epoch milliseconds.
type Entry struct {
	ChatID           string `json:"chatId"`
	PhotoID          string `json:"photoId"`
	PhotoData        string `json:"photoData"`
	Timestamp        int64  `json:"timestamp"`
	LastPhotoIDCheck int64  `json:"lastPhotoIdCheck"`
}

// Meta is the index record kept for every persisted entry.
type Meta struct {
	PhotoID          string `json:"photoId"`
	Timestamp        int64  `json:"timestamp"`
	LastPhotoIDCheck int64  `json:"lastPhotoIdCheck"`
}

// Stats describes the current cache occupancy.
type Stats struct {
	Size        int           `json:"size"`
	MaxSize     int           `json:"maxSize"`
	MaxAge      time.Duration `json:"-"`
	MaxAgeMs    int64         `json:"maxAgeMs"`
	MemorySize  int           `json:"memorySize"`
	MemoryBytes int           `json:"memoryBytes"`
}

// Cache stores chat avatars keyed by chat id and validated by the photo id that produced them.
type Cache interface {
	// Initialize loads the metadata index. Safe to call many times and concurrently.
	Initialize(ctx context.Context)

	// Get returns the cached payload when the stored photo id matches currentPhotoID
	// and the entry is not expired. ok is false on every kind of miss.
	Get(ctx context.Context, chatID, currentPhotoID string, forceCheck bool) (payload string, ok bool)

	// Set upserts the payload of a chat.
	Set(ctx context.Context, chatID, photoID, payload string)

	// Delete drops a single chat entry.
	Delete(ctx context.Context, chatID string)

	// Clear drops every entry and the metadata index.
	Clear(ctx context.Context)

	// Stats reports occupancy.
	Stats(ctx context.Context) Stats
}

// EntryKey is the storage key of a chat entry.
func EntryKey(chatID string) string {
	return EntryKeyPrefix + chatID
}
