package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

type Routes struct {
	Match      *MatchHandler
	Resources  *ResourceHandler
	Dimensions *DimensionHandler
	Points     *PointsHandler
	// Middleware runs on every /api/v1 route.
	Middleware []fiber.Handler
}

// Register mounts the API on app. The search route is registered ahead of
// the detail route so "search" is not taken for an id.
func Register(app *fiber.App, r Routes) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api := app.Group("/api/v1")
	for _, m := range r.Middleware {
		api.Use(m)
	}

	api.Post("/match", r.Match.HandleMatch)

	api.Get("/resources/:kind", r.Resources.List)
	api.Get("/resources/:kind/search", r.Resources.Search)
	api.Get("/resources/media/:id/related", r.Resources.Related)
	api.Get("/resources/:kind/:id", r.Resources.GetDetail)
	api.Get("/resources/:kind/:id/next", r.Resources.Next)
	api.Post("/resources/:kind/:id/like", r.Resources.Like)
	api.Delete("/resources/:kind/:id/like", r.Resources.Unlike)
	api.Post("/resources/:kind/:id/collection", r.Resources.Collect)
	api.Delete("/resources/:kind/:id/collection", r.Resources.Uncollect)

	api.Get("/dimensions", r.Dimensions.List)
	api.Get("/dimensions/:id/tags", r.Dimensions.SampleTags)

	api.Get("/points/:user_id", r.Points.Get)
	// Applying points trusts the caller with any user id. It is meant for
	// internal callers and must not be exposed past the auth edge.
	api.Post("/points/:user_id/:action", r.Points.Apply)
}
