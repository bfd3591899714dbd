package rest

import (
	"github.com/gofiber/fiber/v2"

	domainCache "github.com/AzielCF/az-tgclean/domains/cache"
	"github.com/AzielCF/az-tgclean/pkg/utils"
)

type Cache struct {
	Service domainCache.ICacheUsecase
}

func InitRestCache(app fiber.Router, service domainCache.ICacheUsecase) Cache {
	rest := Cache{Service: service}
	app.Get("/cache/stats", rest.GetStats)
	app.Post("/cache/clear", rest.ClearCache)
	app.Delete("/cache/:chatId", rest.ClearChat)

	return rest
}

func (handler *Cache) GetStats(c *fiber.Ctx) error {
	stats, err := handler.Service.GetStats(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Avatar cache stats retrieved",
		Results: stats,
	})
}

func (handler *Cache) ClearCache(c *fiber.Ctx) error {
	err := handler.Service.ClearCache(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Avatar cache cleared successfully",
	})
}

func (handler *Cache) ClearChat(c *fiber.Ctx) error {
	err := handler.Service.ClearChat(c.UserContext(), c.Params("chatId"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Chat avatar removed from cache",
	})
}
