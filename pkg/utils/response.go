package utils

import (
	"errors"

	"github.com/AzielCF/az-tgclean/domains/chat"
	"github.com/AzielCF/az-tgclean/domains/session"
	pkgError "github.com/AzielCF/az-tgclean/pkg/error"
)

type ResponseData struct {
	Status  int    `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Results any    `json:"results,omitempty"`
}

// PanicIfNeeded panics with a rendered error so the recovery middleware answers the request.
func PanicIfNeeded(err error) {
	if err == nil {
		return
	}
	panic(AsGenericError(err))
}

// AsGenericError maps domain errors to their REST form.
func AsGenericError(err error) pkgError.GenericError {
	var generic pkgError.GenericError
	switch {
	case errors.As(err, &generic):
		return generic
	case errors.Is(err, session.ErrAuthRequired),
		errors.Is(err, session.ErrRevalidationRequired),
		errors.Is(err, chat.ErrSessionExpired):
		return pkgError.AuthError(err.Error())
	case errors.Is(err, chat.ErrPasswordRequired):
		return pkgError.PasswordRequiredError(err.Error())
	case errors.Is(err, chat.ErrChatNotFound):
		return pkgError.NotFoundError(err.Error())
	default:
		return pkgError.InternalServerError(err.Error())
	}
}
