package pagination

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParamsClamps(t *testing.T) {
	p := NewParams(0, 0)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultLimit, p.Limit)
	assert.Equal(t, 0, p.Offset)

	p = NewParams(3, 500)
	assert.Equal(t, MaxLimit, p.Limit)
	assert.Equal(t, 200, p.Offset)
}

func TestGetMeta(t *testing.T) {
	meta := GetMeta(NewParams(2, 10), 25)
	assert.Equal(t, 3, meta.TotalPages)
	assert.True(t, meta.HasNext)
	assert.True(t, meta.HasPrev)

	meta = GetMeta(NewParams(1, 10), 0)
	assert.Equal(t, 0, meta.TotalPages)
	assert.False(t, meta.HasNext)
	assert.False(t, meta.HasPrev)
}

func TestGetParamsFromQuery(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(GetParams(c))
	})

	cases := map[string]Params{
		"/":                    {Page: 1, Limit: DefaultLimit},
		"/?page=3&limit=5":     {Page: 3, Limit: 5, Offset: 10},
		"/?page=abc&limit=-1":  {Page: 1, Limit: DefaultLimit},
		"/?page=2&limit=10000": {Page: 2, Limit: MaxLimit, Offset: MaxLimit},
	}
	for target, want := range cases {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
		require.NoError(t, err, target)

		var got Params
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got), target)
		resp.Body.Close()
		assert.Equal(t, want.Page, got.Page, target)
		assert.Equal(t, want.Limit, got.Limit, target)
	}
}
