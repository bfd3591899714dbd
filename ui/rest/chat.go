package rest

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/AzielCF/az-tgclean/domains/chat"
	"github.com/AzielCF/az-tgclean/pkg/utils"
	"github.com/AzielCF/az-tgclean/validations"
)

type Chat struct {
	Service ChatUsecase
	// baseCtx outlives requests; background refreshes run on it.
	baseCtx context.Context
}

func InitRestChat(ctx context.Context, app fiber.Router, service ChatUsecase) Chat {
	rest := Chat{Service: service, baseCtx: ctx}

	group := app.Group("/chats")
	group.Get("/", rest.ListChats)
	group.Post("/refresh", rest.RefreshChats)
	group.Get("/search", rest.SearchChats)
	group.Get("/selection", rest.GetSelection)
	group.Post("/selection", rest.UpdateSelection)

	return rest
}

// ListChats returns the latest snapshot, loading the list first when nothing was published yet.
func (handler *Chat) ListChats(c *fiber.Ctx) error {
	if !handler.Service.Loaded() {
		_, err := handler.Service.Load(c.UserContext())
		utils.PanicIfNeeded(err)
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Chats retrieved",
		Results: handler.Service.Snapshot(),
	})
}

func (handler *Chat) RefreshChats(c *fiber.Ctx) error {
	started := handler.Service.Refresh(handler.baseCtx)

	message := "Refresh started"
	if !started {
		message = "Refresh already in progress"
	}
	return c.Status(fiber.StatusAccepted).JSON(utils.ResponseData{
		Status:  fiber.StatusAccepted,
		Code:    "SUCCESS",
		Message: message,
		Results: map[string]bool{"started": started},
	})
}

func (handler *Chat) SearchChats(c *fiber.Ctx) error {
	items := handler.Service.Search(c.Query("q"))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Search completed",
		Results: items,
	})
}

func (handler *Chat) GetSelection(c *fiber.Ctx) error {
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Selection retrieved",
		Results: handler.Service.Selected(),
	})
}

func (handler *Chat) UpdateSelection(c *fiber.Ctx) error {
	var request chat.SelectionRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Code: "BAD_REQUEST", Message: err.Error()})
	}
	utils.PanicIfNeeded(validations.ValidateSelection(c.UserContext(), request))

	switch request.Action {
	case chat.SelectToggle:
		handler.Service.Toggle(request.ChatIDs[0])
	case chat.SelectToggleAll:
		handler.Service.ToggleAll(request.Query)
	case chat.SelectSet:
		handler.Service.Select(request.ChatIDs)
	case chat.SelectClear:
		handler.Service.ClearSelection()
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Selection updated",
		Results: handler.Service.Selected(),
	})
}
