package utils

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const serverIDFile = ".server_id"

// GetPersistentServerID returns a stable id for this instance: override when set,
// else the id stored under dir, else a new uuid that is persisted for next time.
func GetPersistentServerID(override, dir string) string {
	if override = strings.TrimSpace(override); override != "" {
		return override
	}

	path := filepath.Join(dir, serverIDFile)
	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
	}

	id := uuid.NewString()
	if err := os.MkdirAll(dir, 0o755); err == nil {
		_ = os.WriteFile(path, []byte(id), 0o600)
	}
	return id
}
