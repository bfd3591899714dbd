package kvstore

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/AzielCF/az-tgclean/core/config"
	"github.com/AzielCF/az-tgclean/core/database"
	"github.com/AzielCF/az-tgclean/domains/kvstore"
	"github.com/AzielCF/az-tgclean/domains/session"
	"github.com/AzielCF/az-tgclean/infrastructure/valkey"
	"github.com/AzielCF/az-tgclean/pkg/crypto"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendValkey = "valkey"
	BackendGorm   = "gorm"
	BackendSQL    = "sql"
)

// Open builds the configured persistent store and prepares its schema. With an
// encryption secret configured, the session and token keys are sealed at rest.
func Open(ctx context.Context, cfg *config.Config) (kvstore.Store, error) {
	store, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.App.EncryptionSecret == "" {
		return store, nil
	}

	cipher, err := crypto.NewCipher(cfg.App.EncryptionSecret)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to init credential cipher: %w", err)
	}
	logrus.Info("[KVSTORE] Session credentials are encrypted at rest")
	return NewSealedStore(store, cipher, session.SessionStringKey, session.TokenKey), nil
}

func openBackend(ctx context.Context, cfg *config.Config) (kvstore.Store, error) {
	switch cfg.Database.Backend {
	case BackendMemory:
		logrus.Warn("[KVSTORE] Using in-memory backend, nothing will survive a restart")
		return NewMemoryStore(), nil

	case BackendValkey:
		client, err := valkey.NewClient(valkey.ConfigFrom(cfg))
		if err != nil {
			return nil, err
		}
		logrus.Infof("[KVSTORE] Using valkey backend at %s", cfg.Database.ValkeyAddress)
		return NewValkeyStore(client), nil

	case BackendSQL:
		db, err := database.NewSQL(cfg)
		if err != nil {
			return nil, err
		}
		store := NewSQLStore(db, cfg.Database.Driver)
		if err := store.Init(ctx); err != nil {
			db.Close()
			return nil, err
		}
		logrus.Infof("[KVSTORE] Using sql backend (%s)", driverOrDefault(cfg.Database.Driver))
		return store, nil

	case BackendGorm, "":
		db, err := database.NewGorm(cfg)
		if err != nil {
			return nil, err
		}
		store := NewGormStore(db)
		if err := store.InitSchema(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to migrate kv schema: %w", err)
		}
		logrus.Infof("[KVSTORE] Using gorm backend (%s)", driverOrDefault(cfg.Database.Driver))
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Database.Backend)
	}
}

func driverOrDefault(driver string) string {
	if driver == "" {
		return "sqlite"
	}
	return driver
}
