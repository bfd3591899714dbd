package rest

import (
	"github.com/gofiber/fiber/v2"

	"github.com/AzielCF/az-tgclean/pkg/utils"
)

// InitRestWorkers exposes the chat worker pool statistics.
func InitRestWorkers(app fiber.Router, pool PoolStatsProvider) {
	app.Get("/workers/stats", func(c *fiber.Ctx) error {
		if pool == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Chat worker pool not initialized",
			})
		}
		return c.JSON(utils.ResponseData{
			Status:  200,
			Code:    "SUCCESS",
			Message: "Worker pool stats retrieved",
			Results: pool.Stats(),
		})
	})
}
