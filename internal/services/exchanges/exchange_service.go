package exchanges

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rajivgeraev/rewear-api/internal/cache"
	"github.com/rajivgeraev/rewear-api/internal/db"
	"github.com/rajivgeraev/rewear-api/internal/exchange"
	"github.com/rajivgeraev/rewear-api/internal/middleware"
	"github.com/rajivgeraev/rewear-api/internal/models"
	"github.com/rajivgeraev/rewear-api/internal/utils"
)

// ExchangeService предоставляет HTTP API обменов поверх машины состояний
type ExchangeService struct {
	core       *exchange.Service
	store      exchange.Store
	summaries  cache.SummaryCache
	jwtService *utils.JWTService
	log        *logrus.Entry
}

// NewExchangeService создает новый экземпляр ExchangeService
func NewExchangeService(core *exchange.Service, store exchange.Store, summaries cache.SummaryCache,
	jwtService *utils.JWTService, log *logrus.Entry) *ExchangeService {
	return &ExchangeService{
		core:       core,
		store:      store,
		summaries:  summaries,
		jwtService: jwtService,
		log:        log,
	}
}

type createRequest struct {
	RecipientItemID string              `json:"recipient_item_id"`
	Kind            models.ExchangeKind `json:"kind"`
	Message         string              `json:"message"`
	InitiatorItemID string              `json:"initiator_item_id"`
}

// CreateExchange создает предложение обмена; запрашиваемая вещь указывается в теле
func (s *ExchangeService) CreateExchange(c fiber.Ctx) error {
	var req createRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}
	return s.create(c, req)
}

// CreateExchangeForItem создает предложение обмена на вещь из URL
func (s *ExchangeService) CreateExchangeForItem(c fiber.Ctx) error {
	var req createRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}
	req.RecipientItemID = c.Params("id")
	return s.create(c, req)
}

func (s *ExchangeService) create(c fiber.Ctx, req createRequest) error {
	actorID, err := middleware.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	recipientItemID, err := uuid.Parse(req.RecipientItemID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID вещи"})
	}

	var initiatorItemID *uuid.UUID
	if req.InitiatorItemID != "" {
		id, err := uuid.Parse(req.InitiatorItemID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID предлагаемой вещи"})
		}
		initiatorItemID = &id
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	created, err := s.core.Create(ctx, exchange.CreateRequest{
		ActorID:         actorID,
		RecipientItemID: recipientItemID,
		Kind:            req.Kind,
		Message:         req.Message,
		InitiatorItemID: initiatorItemID,
	})
	if err != nil {
		return s.fail(c, err, "создание обмена")
	}

	view, err := s.composeOne(ctx, created)
	if err != nil {
		return s.fail(c, err, "получение данных обмена")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":  true,
		"exchange": view,
		"message":  "Предложение обмена успешно создано",
	})
}

// GetMyExchanges возвращает входящие и исходящие предложения обмена
func (s *ExchangeService) GetMyExchanges(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	filter := exchange.ListFilter{
		Box: exchange.Box(c.Query("box", string(exchange.BoxAll))), // all, incoming, outgoing
	}
	if status := c.Query("status", "all"); status != "all" {
		filter.Status = models.ExchangeStatus(status)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	list, err := s.core.ListForUser(ctx, userID, filter)
	if err != nil {
		return s.fail(c, err, "получение списка обменов")
	}

	views, err := s.compose(ctx, list)
	if err != nil {
		return s.fail(c, err, "получение данных обменов")
	}

	return c.JSON(fiber.Map{
		"exchanges": views,
		"count":     len(views),
	})
}

// GetExchange возвращает одно предложение обмена участнику или администратору
func (s *ExchangeService) GetExchange(c fiber.Ctx) error {
	actorID, exchangeID, err := s.actorAndExchange(c)
	if err != nil {
		return err
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	e, err := s.core.Get(ctx, actorID, exchangeID)
	if err != nil {
		return s.fail(c, err, "получение обмена")
	}

	view, err := s.composeOne(ctx, e)
	if err != nil {
		return s.fail(c, err, "получение данных обмена")
	}
	return c.JSON(fiber.Map{"exchange": view})
}

// RespondExchange принимает или отклоняет предложение обмена
func (s *ExchangeService) RespondExchange(c fiber.Ctx) error {
	actorID, exchangeID, err := s.actorAndExchange(c)
	if err != nil {
		return err
	}

	var req struct {
		Decision exchange.Decision `json:"decision"` // accept, reject
		Message  *string           `json:"message"`
	}
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	updated, err := s.core.Respond(ctx, actorID, exchangeID, req.Decision, req.Message)
	if err != nil {
		return s.fail(c, err, "ответ на обмен")
	}

	message := "Предложение обмена отклонено"
	if updated.Status == models.StatusCompleted {
		message = "Обмен успешно завершён"
	}
	return s.sendCommitted(ctx, c, updated, message)
}

// CancelExchange отменяет собственное предложение обмена
func (s *ExchangeService) CancelExchange(c fiber.Ctx) error {
	actorID, exchangeID, err := s.actorAndExchange(c)
	if err != nil {
		return err
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	updated, err := s.core.Cancel(ctx, actorID, exchangeID)
	if err != nil {
		return s.fail(c, err, "отмена обмена")
	}

	return s.sendCommitted(ctx, c, updated, "Предложение обмена отменено")
}

// sendCommitted отвечает на уже зафиксированный переход.
// Если представление собрать не удалось, клиент получает голую запись журнала.
func (s *ExchangeService) sendCommitted(ctx context.Context, c fiber.Ctx, updated *models.Exchange, message string) error {
	var payload any = updated
	view, err := s.composeOne(ctx, updated)
	if err != nil {
		s.log.WithError(err).WithField("exchange_id", updated.ID).
			Warn("Не удалось собрать представление обмена после перехода")
	} else {
		payload = view
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"message":  message,
		"exchange": payload,
	})
}

// GetDashboardStats возвращает сводку для личного кабинета
func (s *ExchangeService) GetDashboardStats(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	stats, err := s.core.Stats(ctx, userID)
	if err != nil {
		return s.fail(c, err, "получение статистики")
	}
	return c.JSON(fiber.Map{"stats": stats})
}

// actorAndExchange извлекает текущего пользователя и ID обмена из запроса
func (s *ExchangeService) actorAndExchange(c fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	actorID, err := middleware.UserID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "Пользователь не авторизован")
	}

	exchangeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Неверный формат ID обмена")
	}
	return actorID, exchangeID, nil
}
