package engine

import "github.com/gofiber/fiber/v2"

func RegisterRoutes(app fiber.Router, h *Handler, authMW fiber.Handler) {
	forest := app.Group("/forest", RenderErrors(h.logger))

	forest.Get("/", h.Alive)
	forest.Post("/stats", authMW, h.LiveQuery)
	forest.Post("/stats/:collection", authMW, h.Chart)
}
