package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetAllSettings returns a map of the runtime settings currently loaded in memory.
func GetAllSettings() map[string]any {
	if Global == nil {
		return map[string]any{}
	}
	return map[string]any{
		"storage_backend":               Global.Database.Backend,
		"telegram_gateway":              Global.Telegram.Gateway,
		"avatar_cache_max_size":         Global.Cache.MaxSize,
		"avatar_cache_max_age":          Global.Cache.MaxAge.String(),
		"avatar_cache_memory_size":      Global.Cache.MemorySize,
		"avatar_cache_recheck_interval": Global.Cache.RecheckInterval.String(),
		"hydration_batch_size":          Global.Hydration.BatchSize,
		"hydration_call_timeout":        Global.Hydration.CallTimeout.String(),
		"app_debug":                     Global.App.Debug,
		"app_version":                   Global.App.Version,
	}
}

// Helpers
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		vLower := strings.ToLower(v)
		return vLower == "1" || vLower == "true" || vLower == "yes" || vLower == "on"
	}
	return fallback
}

// getEnvDuration accepts Go durations ("36h") or plain seconds ("3600").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
