package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requests(t *testing.T, route, code string) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, HTTPRequests.WithLabelValues(route, code).Write(&m))
	return m.GetCounter().GetValue()
}

func TestRequestMiddlewareLabelsByRoute(t *testing.T) {
	app := fiber.New()
	app.Use(RequestMiddleware())
	app.Get("/items/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })
	app.Get("/boom", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusTeapot, "no") })

	before := requests(t, "/items/:id", "204")
	for _, target := range []string{"/items/1", "/items/2"} {
		resp, err := app.Test(httptest.NewRequest("GET", target, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	}
	assert.Equal(t, before+2, requests(t, "/items/:id", "204"))

	resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTeapot, resp.StatusCode)
	assert.Equal(t, 1.0, requests(t, "/boom", "418"))
}
