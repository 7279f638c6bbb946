package exchanges

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/rewear-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API обменов
func (s *ExchangeService) SetupRoutes(app *fiber.App) {
	// Группа для API обменов (требует авторизации)
	api := app.Group("/api/exchanges")
	api.Use(middleware.AuthMiddleware(s.jwtService))

	api.Post("/", s.CreateExchange)
	api.Get("/", s.GetMyExchanges)
	api.Get("/:id", s.GetExchange)
	api.Put("/:id/respond", s.RespondExchange)
	api.Put("/:id/cancel", s.CancelExchange)

	// Предложение обмена со страницы вещи
	fromItem := app.Group("/api/items/:id/exchange")
	fromItem.Use(middleware.AuthMiddleware(s.jwtService))
	fromItem.Post("/", s.CreateExchangeForItem)

	dashboard := app.Group("/api/dashboard")
	dashboard.Use(middleware.AuthMiddleware(s.jwtService))
	dashboard.Get("/stats", s.GetDashboardStats)
}
