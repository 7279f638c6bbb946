package admin

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rajivgeraev/rewear-api/internal/db"
	"github.com/rajivgeraev/rewear-api/internal/exchange"
	"github.com/rajivgeraev/rewear-api/internal/middleware"
	"github.com/rajivgeraev/rewear-api/internal/models"
	"github.com/rajivgeraev/rewear-api/internal/utils"
)

const (
	recentExchanges  = 5
	defaultUserLimit = 20
)

// ModerationStore – операции хранилища, доступные администратору
type ModerationStore interface {
	GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
	ListUsers(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	ListPendingItems(ctx context.Context) ([]models.Item, error)
	ModerateItem(ctx context.Context, itemID, adminID uuid.UUID, approved bool) (*models.Item, error)
	SetUserBanned(ctx context.Context, userID uuid.UUID, banned bool) (*models.User, error)
	SetUserRole(ctx context.Context, userID uuid.UUID, role models.Role) (*models.User, error)
	PlatformStats(ctx context.Context) (*models.PlatformStats, error)
}

// AdminService представляет сервис модерации
type AdminService struct {
	store      ModerationStore
	exchanges  *exchange.Service
	jwtService *utils.JWTService
	log        *logrus.Entry
}

// NewAdminService создает новый экземпляр AdminService
func NewAdminService(store ModerationStore, exchanges *exchange.Service, jwtService *utils.JWTService, log *logrus.Entry) *AdminService {
	return &AdminService{
		store:      store,
		exchanges:  exchanges,
		jwtService: jwtService,
		log:        log,
	}
}

// GetPendingItems возвращает вещи, ожидающие модерации
func (s *AdminService) GetPendingItems(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	list, err := s.store.ListPendingItems(ctx)
	if err != nil {
		return utils.SendError(c, s.log, err, "получение вещей на модерации")
	}
	return c.JSON(fiber.Map{
		"items": list,
		"count": len(list),
	})
}

// ApproveItem одобряет или отклоняет вещь
func (s *AdminService) ApproveItem(c fiber.Ctx) error {
	adminID, targetID, err := adminAndTarget(c)
	if err != nil {
		return err
	}

	var req struct {
		IsApproved *bool `json:"is_approved"`
	}
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}
	approved := req.IsApproved == nil || *req.IsApproved

	ctx, cancel := db.GetContext()
	defer cancel()

	item, err := s.store.ModerateItem(ctx, targetID, adminID, approved)
	if err != nil {
		return utils.SendError(c, s.log, err, "модерация вещи")
	}

	s.log.WithFields(logrus.Fields{"item_id": item.ID, "admin_id": adminID, "approved": approved}).Info("Вещь прошла модерацию")
	return c.JSON(fiber.Map{"item": item})
}

// GetUsers возвращает страницу пользователей с поиском по имени
func (s *AdminService) GetUsers(c fiber.Ctx) error {
	page := utils.ParsePageQuery(c, defaultUserLimit)

	ctx, cancel := db.GetContext()
	defer cancel()

	list, total, err := s.store.ListUsers(ctx, models.UserFilter{
		Search: strings.TrimSpace(c.Query("search")),
		Limit:  page.Limit,
		Offset: page.Offset(),
	})
	if err != nil {
		return utils.SendError(c, s.log, err, "получение списка пользователей")
	}

	return c.JSON(fiber.Map{
		"users":        list,
		"total":        total,
		"total_pages":  page.TotalPages(total),
		"current_page": page.Page,
	})
}

// BanUser блокирует или разблокирует пользователя
func (s *AdminService) BanUser(c fiber.Ctx) error {
	adminID, targetID, err := adminAndTarget(c)
	if err != nil {
		return err
	}

	var req struct {
		Banned *bool `json:"banned"`
	}
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}
	banned := req.Banned == nil || *req.Banned

	if targetID == adminID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Нельзя заблокировать самого себя"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	user, err := s.store.SetUserBanned(ctx, targetID, banned)
	if err != nil {
		return utils.SendError(c, s.log, err, "блокировка пользователя")
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "admin_id": adminID, "banned": banned}).Info("Изменена блокировка пользователя")
	return c.JSON(fiber.Map{"user": user})
}

// SetUserRole назначает роль пользователю
func (s *AdminService) SetUserRole(c fiber.Ctx) error {
	adminID, targetID, err := adminAndTarget(c)
	if err != nil {
		return err
	}

	var req struct {
		Role models.Role `json:"role"`
	}
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}
	if !req.Role.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Недопустимая роль"})
	}
	if targetID == adminID && req.Role != models.RoleAdmin {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Нельзя снять права администратора с самого себя"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	user, err := s.store.SetUserRole(ctx, targetID, req.Role)
	if err != nil {
		return utils.SendError(c, s.log, err, "смена роли")
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "admin_id": adminID, "role": user.Role}).Info("Изменена роль пользователя")
	return c.JSON(fiber.Map{"user": user})
}

// GetExchanges возвращает все обмены с фильтром по статусу и пагинацией
func (s *AdminService) GetExchanges(c fiber.Ctx) error {
	var status models.ExchangeStatus
	if raw := c.Query("status", "all"); raw != "all" {
		status = models.ExchangeStatus(raw)
	}
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	ctx, cancel := db.GetContext()
	defer cancel()

	list, total, page, err := s.exchanges.ListAll(ctx, status, exchange.Page{Limit: limit, Offset: offset})
	if err != nil {
		return utils.SendError(c, s.log, err, "получение списка обменов")
	}

	return c.JSON(fiber.Map{
		"exchanges": list,
		"total":     total,
		"limit":     page.Limit,
		"offset":    page.Offset,
	})
}

// GetStats возвращает сводку по платформе и последние обмены
func (s *AdminService) GetStats(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	var (
		stats  *models.PlatformStats
		recent []models.Exchange
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats, err = s.store.PlatformStats(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		recent, _, _, err = s.exchanges.ListAll(gctx, "", exchange.Page{Limit: recentExchanges})
		return err
	})
	if err := g.Wait(); err != nil {
		return utils.SendError(c, s.log, err, "получение статистики")
	}

	return c.JSON(fiber.Map{
		"stats":            stats,
		"recent_exchanges": recent,
	})
}

func adminAndTarget(c fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	adminID, err := middleware.UserID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "Пользователь не авторизован")
	}
	targetID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Неверный формат ID")
	}
	return adminID, targetID, nil
}
