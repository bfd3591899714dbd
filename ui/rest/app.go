package rest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/AzielCF/az-tgclean/core/config"
	"github.com/AzielCF/az-tgclean/domains/cache"
	"github.com/AzielCF/az-tgclean/domains/chat"
	"github.com/AzielCF/az-tgclean/ui/rest/middleware"
	"github.com/AzielCF/az-tgclean/ui/websocket"
)

// Deps are the services behind the HTTP surface. Feed may be nil to disable /ws.
type Deps struct {
	Chats    ChatUsecase
	Auth     AuthUsecase
	Cache    cache.ICacheUsecase
	Deletion chat.IDeletionUsecase
	Pool     PoolStatsProvider
	Feed     websocket.ChatFeed
}

var ErrNoBasicAuth = errors.New("APP_BASIC_AUTH is required, set APP_BASIC_AUTH=<user>:<secret>[,<user2>:<secret2>]")

// ParseBasicAuth turns user:secret pairs into the basicauth users map.
func ParseBasicAuth(credentials []string) (map[string]string, error) {
	if len(credentials) == 0 {
		return nil, ErrNoBasicAuth
	}
	account := make(map[string]string, len(credentials))
	for _, basicAuth := range credentials {
		user, secret, ok := strings.Cut(strings.TrimSpace(basicAuth), ":")
		if !ok || user == "" || secret == "" {
			return nil, fmt.Errorf("basic auth entry %q is not in the <user>:<secret> format", basicAuth)
		}
		account[user] = secret
	}
	return account, nil
}

// NewApp builds the fiber app. ctx bounds background work started by handlers.
func NewApp(ctx context.Context, cfg config.AppConfig, deps Deps) (*fiber.App, error) {
	account, err := ParseBasicAuth(cfg.BasicAuth)
	if err != nil {
		return nil, err
	}

	fiberConfig := fiber.Config{
		EnableTrustedProxyCheck: true,
		Network:                 "tcp",
		AppName:                 "tgclean",
		DisableStartupMessage:   true,
		ServerHeader:            "Hidden",
	}
	if len(cfg.TrustedProxies) > 0 {
		fiberConfig.TrustedProxies = cfg.TrustedProxies
		fiberConfig.ProxyHeader = fiber.HeaderXForwardedHost
	}

	app := fiber.New(fiberConfig)
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.CorsAllowedOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.Recovery())
	app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        1000,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
	}))
	if cfg.Debug {
		app.Use(logger.New())
	}

	authMiddleware := basicauth.New(basicauth.Config{
		Users: account,
		Next: func(c *fiber.Ctx) bool {
			// Allow CORS preflight without credentials.
			return c.Method() == fiber.MethodOptions
		},
	})

	root := app.Group(cfg.BasePath)
	InitRestHealth(root, cfg.Version, deps.Chats, deps.Pool)

	apiGroup := app.Group(cfg.BasePath+"/api", authMiddleware)
	InitRestChat(ctx, apiGroup, deps.Chats)
	InitRestAuth(apiGroup, deps.Auth, deps.Chats)
	InitRestCache(apiGroup, deps.Cache)
	InitRestMessage(apiGroup, deps.Deletion, deps.Chats)
	InitRestWorkers(apiGroup, deps.Pool)

	if deps.Feed != nil {
		app.Use(cfg.BasePath+"/ws", authMiddleware)
		websocket.RegisterRoutes(ctx, root, deps.Feed)
	}

	apiGroup.All("/*", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "API Endpoint not found",
			"path":  c.Path(),
		})
	})

	return app, nil
}
