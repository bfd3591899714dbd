package validations

import (
	"context"
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/AzielCF/az-tgclean/domains/chat"
	pkgError "github.com/AzielCF/az-tgclean/pkg/error"
	"github.com/AzielCF/az-tgclean/pkg/timeutils"
)

// MaxDeletionChats bounds how many chats one deletion request may touch.
const MaxDeletionChats = 500

func ValidateSelection(ctx context.Context, request chat.SelectionRequest) error {
	needsIDs := request.Action == chat.SelectToggle
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Action, validation.Required,
			validation.In(chat.SelectToggle, chat.SelectToggleAll, chat.SelectSet, chat.SelectClear)),
		validation.Field(&request.ChatIDs, validation.When(needsIDs, validation.Required, validation.Length(1, 1))),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}

func ValidateDeletionRequest(ctx context.Context, request chat.DeletionRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.ChatIDs, validation.Length(0, MaxDeletionChats)),
		validation.Field(&request.Range, validation.In(
			timeutils.RangeLastDay, timeutils.RangeLastWeek, timeutils.RangeAll, timeutils.RangeCustom,
		)),
		validation.Field(&request.Custom, validation.When(request.Range == timeutils.RangeCustom,
			validation.Required, validation.By(validateDateRange))),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}

func validateDateRange(value any) error {
	r, _ := value.(*timeutils.DateRange)
	if r == nil {
		return nil
	}
	if r.Start.IsZero() || r.End.IsZero() {
		return errors.New("start and end dates are required")
	}
	if r.End.Before(timeutils.StartOfDay(r.Start)) {
		return errors.New("end date is before start date")
	}
	return nil
}
