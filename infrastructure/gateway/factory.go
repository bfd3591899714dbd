package gateway

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/AzielCF/az-tgclean/core/config"
	"github.com/AzielCF/az-tgclean/domains/chat"
	"github.com/AzielCF/az-tgclean/domains/kvstore"
	"github.com/AzielCF/az-tgclean/domains/session"
)

// Gateway kinds accepted by Open.
const (
	KindHTTP    = "http"
	KindMTProto = "mtproto"
)

// Backend is everything the application needs from a gateway.
type Backend interface {
	chat.Gateway
	chat.Authenticator
	session.Revalidator
}

// Open builds the configured gateway. The MTProto client is connected in the
// background and stops with ctx.
func Open(ctx context.Context, cfg config.TelegramConfig, store kvstore.Store, sessions session.Store) (Backend, error) {
	switch cfg.Gateway {
	case KindHTTP, "":
		logrus.Infof("[GATEWAY] Using HTTP backend at %s", cfg.APIBaseURL)
		return NewHTTPGateway(cfg, sessions), nil

	case KindMTProto:
		g, err := NewGotdGateway(cfg, store)
		if err != nil {
			return nil, err
		}
		go func() {
			if err := g.Start(ctx); err != nil {
				logrus.WithError(err).Error("[GATEWAY] MTProto client failed")
			}
		}()
		logrus.Info("[GATEWAY] Using MTProto backend")
		return g, nil

	default:
		return nil, fmt.Errorf("unsupported gateway: %s", cfg.Gateway)
	}
}
