package admin

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/rewear-api/internal/middleware"
)

// SetupRoutes настраивает маршруты администратора
func (s *AdminService) SetupRoutes(app *fiber.App) {
	api := app.Group("/api/admin")
	api.Use(middleware.AuthMiddleware(s.jwtService))
	api.Use(middleware.AdminOnly(s.store))

	api.Get("/items/pending", s.GetPendingItems)
	api.Put("/items/:id/approve", s.ApproveItem)

	api.Get("/users", s.GetUsers)
	api.Put("/users/:id/ban", s.BanUser)
	api.Put("/users/:id/role", s.SetUserRole)

	api.Get("/exchanges", s.GetExchanges)
	api.Get("/stats", s.GetStats)
}
