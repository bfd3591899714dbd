package rest

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/AzielCF/az-tgclean/pkg/utils"
)

type Health struct {
	Version string
	Chats   ChatUsecase
	Pool    PoolStatsProvider
	started time.Time
}

type healthStatus struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Uptime      string `json:"uptime"`
	ChatsLoaded bool   `json:"chatsLoaded"`
	Hydrating   bool   `json:"hydrating"`
	Workers     int    `json:"workers"`
}

// InitRestHealth mounts /health and /metrics on the unauthenticated root router.
func InitRestHealth(app fiber.Router, version string, chats ChatUsecase, pool PoolStatsProvider) Health {
	handler := Health{Version: version, Chats: chats, Pool: pool, started: time.Now()}

	app.Get("/health", handler.GetStatus)
	app.Get("/metrics", adaptor(promhttp.Handler()))

	return handler
}

func (h *Health) GetStatus(c *fiber.Ctx) error {
	status := healthStatus{
		Status:  "ok",
		Version: h.Version,
		Uptime:  time.Since(h.started).Round(time.Second).String(),
	}
	if h.Chats != nil {
		status.ChatsLoaded = h.Chats.Loaded()
		status.Hydrating = h.Chats.Running()
	}
	if h.Pool != nil {
		status.Workers = h.Pool.Stats().NumWorkers
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Service healthy",
		Results: status,
	})
}

func adaptor(h http.Handler) fiber.Handler {
	handler := fasthttpadaptor.NewFastHTTPHandler(h)
	return func(c *fiber.Ctx) error {
		handler(c.Context())
		return nil
	}
}
