package cache

import "context"

// CacheStats is the admin view of the avatar cache.
type CacheStats struct {
	Entries       int    `json:"entries"`
	MaxEntries    int    `json:"max_entries"`
	MaxAge        string `json:"max_age"`
	MemoryEntries int    `json:"memory_entries"`
	MemoryBytes   int    `json:"memory_bytes"`
	HumanSize     string `json:"human_size"`
}

type ICacheUsecase interface {
	GetStats(ctx context.Context) (CacheStats, error)
	ClearCache(ctx context.Context) error
	ClearChat(ctx context.Context, chatID string) error
}
