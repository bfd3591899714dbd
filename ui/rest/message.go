package rest

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/AzielCF/az-tgclean/domains/chat"
	"github.com/AzielCF/az-tgclean/pkg/utils"
)

type Message struct {
	Service chat.IDeletionUsecase
	Chats   ChatUsecase
}

func InitRestMessage(app fiber.Router, service chat.IDeletionUsecase, chats ChatUsecase) Message {
	rest := Message{Service: service, Chats: chats}
	app.Post("/messages/delete", rest.DeleteMessages)
	return rest
}

// DeleteMessages runs a bulk deletion. A session that expires mid-way still returns
// the partial result, with a 401 status.
func (controller *Message) DeleteMessages(c *fiber.Ctx) error {
	var request chat.DeletionRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Code: "BAD_REQUEST", Message: err.Error()})
	}

	result, err := controller.Service.Delete(c.UserContext(), request)
	if controller.Chats != nil {
		controller.Chats.ApplyDeletions(result.PerChat)
	}

	if errors.Is(err, chat.ErrSessionExpired) {
		generic := utils.AsGenericError(err)
		return c.Status(generic.StatusCode()).JSON(utils.ResponseData{
			Status:  generic.StatusCode(),
			Code:    generic.ErrCode(),
			Message: generic.Error(),
			Results: result,
		})
	}
	utils.PanicIfNeeded(err)

	message := "Messages deleted"
	if !result.Success {
		message = "Messages deleted with errors"
	}
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: message,
		Results: result,
	})
}
