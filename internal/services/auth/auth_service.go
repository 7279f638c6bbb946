package auth

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	initdata "github.com/telegram-mini-apps/init-data-golang"

	"github.com/rajivgeraev/rewear-api/internal/config"
	"github.com/rajivgeraev/rewear-api/internal/db"
	"github.com/rajivgeraev/rewear-api/internal/exchange"
	"github.com/rajivgeraev/rewear-api/internal/middleware"
	"github.com/rajivgeraev/rewear-api/internal/models"
	"github.com/rajivgeraev/rewear-api/internal/utils"
)

const initDataTTL = 24 * time.Hour

// UserRegistry – хранилище пользователей, в котором регистрируются входы через Telegram
type UserRegistry interface {
	UpsertTelegramUser(ctx context.Context, profile models.TelegramProfile) (*models.User, bool, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// AuthService – структура для обработки авторизации
type AuthService struct {
	cfg        *config.Config
	users      UserRegistry
	jwtService *utils.JWTService
	log        *logrus.Entry
}

// NewAuthService – конструктор AuthService
func NewAuthService(cfg *config.Config, users UserRegistry, log *logrus.Entry) *AuthService {
	return &AuthService{
		cfg:        cfg,
		users:      users,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
		log:        log,
	}
}

// GetJWTService возвращает сервис токенов для middleware других сервисов
func (s *AuthService) GetJWTService() *utils.JWTService {
	return s.jwtService
}

// TelegramAuthHandler проверяет initData, регистрирует пользователя, создает JWT и возвращает его
func (s *AuthService) TelegramAuthHandler(c fiber.Ctx) error {
	var payload struct {
		InitData string `json:"init_data"`
	}

	if err := c.Bind().Body(&payload); err != nil || payload.InitData == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат запроса"})
	}

	// Без токена бота подпись проверить нельзя: допускается только при локальном запуске
	if !(s.cfg.IsLocal() && s.cfg.TelegramBotToken == "") {
		if err := initdata.Validate(payload.InitData, s.cfg.TelegramBotToken, initDataTTL); err != nil {
			s.log.WithError(err).Debug("Отклонены данные Telegram")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Недействительные данные Telegram"})
		}
	}

	// Парсим данные
	data, err := initdata.Parse(payload.InitData)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Не удалось разобрать initData"})
	}
	if data.User.ID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "В initData отсутствует пользователь"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	user, created, err := s.users.UpsertTelegramUser(ctx, models.TelegramProfile{
		TelegramID:   data.User.ID,
		Username:     data.User.Username,
		FirstName:    data.User.FirstName,
		LastName:     data.User.LastName,
		PhotoURL:     data.User.PhotoURL,
		IsPremium:    data.User.IsPremium,
		LanguageCode: data.User.LanguageCode,
	})
	if err != nil {
		s.log.WithError(err).WithField("telegram_id", data.User.ID).Error("Ошибка при регистрации пользователя")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка при сохранении пользователя"})
	}

	if user.IsBanned {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Пользователь заблокирован"})
	}

	// Генерируем JWT
	jwtToken, err := s.jwtService.GenerateToken(user.ID, user.Role)
	if err != nil {
		s.log.WithError(err).Error("Ошибка при создании JWT")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Не удалось создать токен"})
	}

	if created {
		s.log.WithFields(logrus.Fields{"user_id": user.ID, "telegram_id": data.User.ID}).Info("Зарегистрирован новый пользователь")
	}

	return c.JSON(fiber.Map{
		"token":   jwtToken,
		"created": created,
		"user":    user,
	})
}

// ProfileHandler возвращает текущего пользователя вместе с балансом баллов
func (s *AuthService) ProfileHandler(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, exchange.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Пользователь не найден"})
		}
		s.log.WithError(err).WithField("user_id", userID).Error("Ошибка при получении профиля")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка при получении профиля"})
	}

	return c.JSON(fiber.Map{"user": user})
}
