package items

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/rewear-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API каталога
func (s *ItemService) SetupRoutes(app *fiber.App) {
	// Каталог читается без авторизации; изменения требуют токена,
	// обработчики сами отвечают 401 без пользователя
	api := app.Group("/api/items")
	api.Use(middleware.OptionalAuth(s.jwtService))

	api.Get("/", s.GetItems)
	api.Post("/", s.CreateItem)

	// /my регистрируется раньше /:id
	api.Get("/my", s.GetMyItems)
	api.Get("/:id", s.GetItem)
	api.Put("/:id", s.UpdateItem)
	api.Delete("/:id", s.DeleteItem)

	users := app.Group("/api/users")
	users.Get("/:id", s.GetUserProfile)
	users.Get("/:id/items", s.GetUserItems)
}
