package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/rewear-api/internal/exchange"
	"github.com/rajivgeraev/rewear-api/internal/models"
	"github.com/rajivgeraev/rewear-api/internal/utils"
)

const lookupTimeout = 5 * time.Second

// UserLookup находит пользователя по ID
type UserLookup interface {
	GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// AuthMiddleware создаёт middleware для проверки JWT
func AuthMiddleware(jwtService *utils.JWTService) fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Отсутствует заголовок авторизации",
			})
		}

		return authenticate(c, jwtService, authHeader)
	}
}

// OptionalAuth пропускает анонимные запросы, но проверяет переданный токен.
// Для публичных маршрутов, ответ которых зависит от того, кто спрашивает.
func OptionalAuth(jwtService *utils.JWTService) fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Next()
		}
		return authenticate(c, jwtService, authHeader)
	}
}

func authenticate(c fiber.Ctx, jwtService *utils.JWTService, authHeader string) error {
	// Проверяем Bearer токен
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Неверный формат заголовка авторизации",
		})
	}

	userID, err := jwtService.ExtractUserID(parts[1])
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Недействительный или просроченный токен",
		})
	}

	// Добавляем userID в контекст
	c.Locals("userID", userID.String())

	return c.Next()
}

// UserID возвращает ID пользователя, сохранённый AuthMiddleware
func UserID(c fiber.Ctx) (uuid.UUID, error) {
	raw, ok := c.Locals("userID").(string)
	if !ok {
		return uuid.Nil, errors.New("пользователь не авторизован")
	}
	return uuid.Parse(raw)
}

// AdminOnly пропускает только администраторов. Роль и блокировка читаются из хранилища
// при каждом запросе, а не из токена.
func AdminOnly(users UserLookup) fiber.Handler {
	return func(c fiber.Ctx) error {
		userID, err := UserID(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Пользователь не авторизован",
			})
		}

		ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
		defer cancel()

		user, err := users.GetUser(ctx, userID)
		if err != nil {
			if errors.Is(err, exchange.ErrNotFound) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Пользователь не найден",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Ошибка при проверке прав доступа",
			})
		}

		if !user.IsAdmin() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Доступ только для администраторов",
			})
		}

		return c.Next()
	}
}
