package cmd

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/AzielCF/az-tgclean/core/config"
	domainCache "github.com/AzielCF/az-tgclean/domains/cache"
	domainKV "github.com/AzielCF/az-tgclean/domains/kvstore"
	"github.com/AzielCF/az-tgclean/infrastructure/gateway"
	"github.com/AzielCF/az-tgclean/infrastructure/kvstore"
	"github.com/AzielCF/az-tgclean/infrastructure/metrics"
	"github.com/AzielCF/az-tgclean/infrastructure/valkey"
	"github.com/AzielCF/az-tgclean/pkg/avatarcache"
	"github.com/AzielCF/az-tgclean/pkg/chatworker"
	"github.com/AzielCF/az-tgclean/pkg/hydration"
	"github.com/AzielCF/az-tgclean/usecase"
)

// application is the wired object graph shared by every command.
type application struct {
	store    domainKV.Store
	avatars  *avatarcache.Cache
	gateway  gateway.Backend
	sessions *usecase.SessionService
	chats    *usecase.ChatService
	cache    domainCache.ICacheUsecase
	pool     *chatworker.Pool
	deletion *usecase.DeletionService
	// valkey is set when the store is valkey-backed; the websocket hub reuses it.
	valkey *valkey.Client
}

func buildApp(ctx context.Context, c *config.Config) (*application, error) {
	store, err := kvstore.Open(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	a := &application{store: store}
	backend := store
	if ss, ok := store.(*kvstore.SealedStore); ok {
		backend = ss.Unwrap()
	}
	if vs, ok := backend.(*kvstore.ValkeyStore); ok {
		a.valkey = vs.Client()
	}

	a.avatars = avatarcache.New(store,
		avatarcache.WithLimits(avatarcache.LimitsFrom(c.Cache)),
		avatarcache.WithObserver(metrics.AvatarCache{}),
	)
	a.avatars.Initialize(ctx)

	// The gateway only reads credentials, so it gets a store-only session view.
	credentials := usecase.NewSessionService(store, nil, nil, nil)
	a.gateway, err = gateway.Open(ctx, c.Telegram, store, credentials)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	a.sessions = usecase.NewSessionService(store, a.gateway, a.gateway, a.avatars)
	a.chats = usecase.NewChatService(a.gateway, a.avatars, a.sessions, hydration.Options{
		BatchSize:   c.Hydration.BatchSize,
		CallTimeout: c.Hydration.CallTimeout,
		Observer:    metrics.Hydration{},
	})
	a.cache = usecase.NewCacheService(a.avatars)

	a.pool = chatworker.NewPool(c.WorkerPool.Size, c.WorkerPool.QueueSize)
	a.pool.OnJobDone = metrics.WorkerJobDone
	a.pool.Start(ctx)

	a.deletion = usecase.NewDeletionService(a.gateway, a.sessions, a.pool, c.Deletion)
	return a, nil
}

// Close stops the workers and releases the storage.
func (a *application) Close() {
	logrus.Info("[APP] Stopping application...")
	a.pool.Stop()
	if err := a.store.Close(); err != nil {
		logrus.WithError(err).Warn("[APP] Failed to close storage")
	}
	logrus.Info("[APP] Application stopped cleanly.")
}
