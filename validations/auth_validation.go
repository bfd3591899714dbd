package validations

import (
	"context"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/AzielCF/az-tgclean/domains/chat"
	pkgError "github.com/AzielCF/az-tgclean/pkg/error"
)

var phoneRule = validation.Match(regexp.MustCompile(`^\+?[0-9]{7,15}$`)).Error("must be an international phone number")

func ValidateSendCode(ctx context.Context, phone string) error {
	err := validation.ValidateWithContext(ctx, phone, validation.Required, phoneRule)
	if err != nil {
		return pkgError.ValidationError("phone: " + err.Error())
	}
	return nil
}

func ValidateSignIn(ctx context.Context, request chat.SignInRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Phone, validation.Required, phoneRule),
		validation.Field(&request.PhoneCodeHash, validation.Required),
		validation.Field(&request.Code, validation.Required, is.Digit, validation.Length(4, 8)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}

func ValidatePassword(ctx context.Context, request chat.PasswordRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Phone, validation.Required, phoneRule),
		validation.Field(&request.Password, validation.Required),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}
