package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AzielCF/az-tgclean/domains/session"
	pkgError "github.com/AzielCF/az-tgclean/pkg/error"
	"github.com/AzielCF/az-tgclean/pkg/utils"
)

func TestRecovery(t *testing.T) {
	app := fiber.New()
	app.Use(Recovery())
	app.Get("/validation", func(*fiber.Ctx) error { panic(pkgError.ValidationError("phone is required")) })
	app.Get("/auth", func(*fiber.Ctx) error { panic(session.ErrAuthRequired) })
	app.Get("/string", func(*fiber.Ctx) error { panic("boom") })
	app.Get("/plain", func(*fiber.Ctx) error { panic(errors.New("disk full")) })

	tests := []struct {
		path   string
		status int
		code   string
	}{
		{"/validation", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"/auth", http.StatusUnauthorized, "AUTH_REQUIRED"},
		{"/string", http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
		{"/plain", http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
			var body utils.ResponseData
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.status, body.Status)
		})
	}
}
