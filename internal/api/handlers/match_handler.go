package handlers

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/dennis1984/BYWebApp/internal/apperr"
	"github.com/dennis1984/BYWebApp/internal/matcher"
	"github.com/dennis1984/BYWebApp/pkg/logger"
)

type Matcher interface {
	Match(ctx context.Context, req *matcher.Request) ([]matcher.Ranked, error)
}

type MatchHandler struct {
	matcher Matcher
}

func NewMatchHandler(m Matcher) *MatchHandler {
	return &MatchHandler{
		matcher: m,
	}
}

// HandleMatch ranks resources against the posted tag selection.
func (h *MatchHandler) HandleMatch(c *fiber.Ctx) error {
	var req matcher.Request
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		logger.Debug("Failed to parse match request", zap.Error(err))
		return respondError(c, apperr.InvalidInput("body", "invalid JSON: %v", err))
	}

	ranked, err := h.matcher.Match(c.UserContext(), &req)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"results": ranked,
	})
}
