package middleware

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	pkgError "github.com/AzielCF/az-tgclean/pkg/error"
	"github.com/AzielCF/az-tgclean/pkg/utils"
)

// Recovery turns panics into JSON responses. GenericError panics keep their status
// and code; plain errors go through the domain error mapping; anything else is a 500.
func Recovery() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			res := utils.ResponseData{
				Status:  500,
				Code:    "INTERNAL_SERVER_ERROR",
				Message: fmt.Sprintf("%v", r),
			}

			var generic pkgError.GenericError
			switch v := r.(type) {
			case pkgError.GenericError:
				generic = v
			case error:
				generic = utils.AsGenericError(v)
			}
			if generic != nil {
				res.Status = generic.StatusCode()
				res.Code = generic.ErrCode()
				res.Message = generic.Error()
			}

			entry := logrus.WithField("request_id", ctx.Locals("requestid"))
			if res.Status >= 500 {
				entry.Errorf("Panic recovered in middleware: %v", r)
			} else {
				entry.Debugf("Request failed: %s", res.Message)
			}

			_ = ctx.Status(res.Status).JSON(res)
		}()

		return ctx.Next()
	}
}
