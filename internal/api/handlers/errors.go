package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/dennis1984/BYWebApp/internal/apperr"
	"github.com/dennis1984/BYWebApp/internal/points"
	"github.com/dennis1984/BYWebApp/internal/storage/models"
	"github.com/dennis1984/BYWebApp/pkg/logger"
)

// respondError maps err to a status code and writes {"error": ...}.
// Internal failures are logged and their detail withheld.
func respondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, apperr.ErrInvalidInput), errors.Is(err, points.ErrInsufficientPoints):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, apperr.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, apperr.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}

	logger.Error("Request failed",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal server error",
	})
}

func positiveParam(c *fiber.Ctx, name string) (int64, error) {
	raw := c.Params(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.InvalidInput(name, "must be a positive integer, got %q", raw)
	}
	return id, nil
}

func kindParam(c *fiber.Ctx) (models.ResourceKind, error) {
	return models.ParseResourceKind(c.Params("kind"))
}

func positiveQuery(c *fiber.Ctx, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, apperr.InvalidInput(name, "must be a positive integer, got %q", raw)
	}
	return n, nil
}

// UserIDHeader carries the caller's user id. It is set by the
// authenticating proxy in front of the API.
const UserIDHeader = "X-User-ID"

func userHeader(c *fiber.Ctx) (int64, error) {
	raw := c.Get(UserIDHeader)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.InvalidInput("user_id", "header %s must be a positive integer, got %q", UserIDHeader, raw)
	}
	return id, nil
}

// optionalInt parses an optional integer query parameter.
func optionalInt(c *fiber.Ctx, name string) (*int, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, apperr.InvalidInput(name, "must be an integer, got %q", raw)
	}
	return &n, nil
}

func optionalFloat(c *fiber.Ctx, name string) (*float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, apperr.InvalidInput(name, "must be a number, got %q", raw)
	}
	return &f, nil
}

func filterQuery(c *fiber.Ctx) (models.ResourceFilter, error) {
	var (
		f   models.ResourceFilter
		err error
	)
	if f.MediaType, err = optionalInt(c, "media_type"); err != nil {
		return f, err
	}
	if f.ThemeType, err = optionalInt(c, "theme_type"); err != nil {
		return f, err
	}
	if f.Progress, err = optionalInt(c, "progress"); err != nil {
		return f, err
	}
	if f.MinTemperature, err = optionalFloat(c, "min_temperature"); err != nil {
		return f, err
	}
	f.MaxTemperature, err = optionalFloat(c, "max_temperature")
	return f, err
}
