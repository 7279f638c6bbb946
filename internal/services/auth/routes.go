package auth

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/rewear-api/internal/middleware"
)

// SetupRoutes регистрирует маршруты в Fiber
func (s *AuthService) SetupRoutes(app *fiber.App) {
	app.Post("/api/auth/telegram", s.TelegramAuthHandler)

	// Защищенные маршруты. Группа узкая: каталог под /api публичный.
	protected := app.Group("/api/profile")
	protected.Use(middleware.AuthMiddleware(s.jwtService))

	protected.Get("/", s.ProfileHandler)
}
