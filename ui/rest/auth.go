package rest

import (
	"github.com/gofiber/fiber/v2"

	"github.com/AzielCF/az-tgclean/domains/chat"
	"github.com/AzielCF/az-tgclean/pkg/utils"
)

type Auth struct {
	Service AuthUsecase
	Chats   ChatUsecase
}

type sendCodeRequest struct {
	Phone string `json:"phone"`
}

// authStatus never carries the session string or the token.
type authStatus struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"userId,omitempty"`
}

func InitRestAuth(app fiber.Router, service AuthUsecase, chats ChatUsecase) Auth {
	rest := Auth{Service: service, Chats: chats}

	group := app.Group("/auth")
	group.Post("/send-code", rest.SendCode)
	group.Post("/sign-in", rest.SignIn)
	group.Post("/password", rest.CheckPassword)
	group.Post("/logout", rest.Logout)
	group.Get("/status", rest.Status)

	return rest
}

func (handler *Auth) SendCode(c *fiber.Ctx) error {
	var request sendCodeRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Code: "BAD_REQUEST", Message: err.Error()})
	}

	sent, err := handler.Service.SendCode(c.UserContext(), request.Phone)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Login code sent",
		Results: sent,
	})
}

func (handler *Auth) SignIn(c *fiber.Ctx) error {
	var request chat.SignInRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Code: "BAD_REQUEST", Message: err.Error()})
	}

	rec, err := handler.Service.SignIn(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Login success",
		Results: authStatus{Authenticated: true, UserID: rec.UserID},
	})
}

func (handler *Auth) CheckPassword(c *fiber.Ctx) error {
	var request chat.PasswordRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Code: "BAD_REQUEST", Message: err.Error()})
	}

	rec, err := handler.Service.CheckPassword(c.UserContext(), request.Phone, request.Password)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Login success",
		Results: authStatus{Authenticated: true, UserID: rec.UserID},
	})
}

func (handler *Auth) Logout(c *fiber.Ctx) error {
	utils.PanicIfNeeded(handler.Service.Logout(c.UserContext()))
	if handler.Chats != nil {
		handler.Chats.Reset()
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Success logout",
	})
}

func (handler *Auth) Status(c *fiber.Ctx) error {
	ctx := c.UserContext()
	status := authStatus{Authenticated: handler.Service.IsAuthenticated(ctx)}
	if status.Authenticated {
		userID, _, err := handler.Service.LoadSession(ctx)
		utils.PanicIfNeeded(err)
		status.UserID = userID
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Session status retrieved",
		Results: status,
	})
}
