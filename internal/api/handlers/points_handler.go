package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/dennis1984/BYWebApp/internal/storage/models"
)

type Points interface {
	Balance(ctx context.Context, userID int64) (int64, error)
	Apply(ctx context.Context, userID int64, action models.ScoreAction) (int64, error)
	History(ctx context.Context, userID int64) ([]*models.ScoreRecord, error)
}

type PointsHandler struct {
	points Points
}

func NewPointsHandler(p Points) *PointsHandler {
	return &PointsHandler{
		points: p,
	}
}

func (h *PointsHandler) Get(c *fiber.Ctx) error {
	userID, err := positiveParam(c, "user_id")
	if err != nil {
		return respondError(c, err)
	}

	ctx := c.UserContext()
	balance, err := h.points.Balance(ctx, userID)
	if err != nil {
		return respondError(c, err)
	}
	records, err := h.points.History(ctx, userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"user_id": userID,
		"score":   balance,
		"records": records,
	})
}

func (h *PointsHandler) Apply(c *fiber.Ctx) error {
	userID, err := positiveParam(c, "user_id")
	if err != nil {
		return respondError(c, err)
	}

	balance, err := h.points.Apply(c.UserContext(), userID, models.ScoreAction(c.Params("action")))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"user_id": userID,
		"score":   balance,
	})
}
