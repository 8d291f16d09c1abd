package response

import (
	"io"
	"net/http/httptest"
	"testing"

	"libraryhub/internal/core/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusOf(t *testing.T) {
	cases := map[error]int{
		domain.ErrBookNotFound:                 fiber.StatusNotFound,
		domain.ErrInvalidDamageType:            fiber.StatusBadRequest,
		domain.NewValidationError("x", "bad"):  fiber.StatusBadRequest,
		domain.ErrNoCopiesAvailable:            fiber.StatusConflict,
		domain.ErrRequestNotPending:            fiber.StatusConflict,
		domain.ErrInvalidCredentials:           fiber.StatusUnauthorized,
		domain.ErrDirectIssueDisabled:          fiber.StatusForbidden,
		errors.Wrap(domain.ErrFineNotFound, "x"): fiber.StatusNotFound,
		errors.New("boom"):                     fiber.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, StatusOf(err), err.Error())
	}
}

func TestFromErrorOverride(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return FromError(c, domain.ErrNoCopiesAvailable, Override{Err: domain.ErrNoCopiesAvailable, Status: fiber.StatusBadRequest})
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return FromError(c, errors.New("db down"))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.NotContains(t, string(body), "db down")
}
