package items

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/rewear-api/internal/db"
	"github.com/rajivgeraev/rewear-api/internal/models"
	"github.com/rajivgeraev/rewear-api/internal/utils"
)

// GetUserProfile возвращает публичный профиль пользователя и число его вещей в каталоге
func (s *ItemService) GetUserProfile(c fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID пользователя"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return utils.SendError(c, s.log, err, "получение профиля")
	}

	_, total, err := s.store.ListItems(ctx, models.ItemFilter{OwnerID: &userID, Limit: 1})
	if err != nil {
		return utils.SendError(c, s.log, err, "получение профиля")
	}

	return c.JSON(fiber.Map{
		"user":        user.Profile(),
		"items_count": total,
	})
}

// GetUserItems возвращает одобренные и доступные вещи пользователя, новые первыми
func (s *ItemService) GetUserItems(c fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID пользователя"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return utils.SendError(c, s.log, err, "получение вещей пользователя")
	}

	list, _, err := s.store.ListItems(ctx, models.ItemFilter{OwnerID: &userID})
	if err != nil {
		return utils.SendError(c, s.log, err, "получение вещей пользователя")
	}

	return c.JSON(fiber.Map{
		"items": list,
		"count": len(list),
	})
}
