package items

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rajivgeraev/rewear-api/internal/db"
	"github.com/rajivgeraev/rewear-api/internal/exchange"
	"github.com/rajivgeraev/rewear-api/internal/middleware"
	"github.com/rajivgeraev/rewear-api/internal/models"
	"github.com/rajivgeraev/rewear-api/internal/utils"
)

const (
	maxImages        = 10
	defaultPageLimit = 12
)

// ItemStore – хранилище каталога вещей
type ItemStore interface {
	CreateItem(ctx context.Context, item *models.Item) error
	GetItem(ctx context.Context, itemID uuid.UUID) (*models.Item, error)
	ListItemsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Item, error)
	ListItems(ctx context.Context, filter models.ItemFilter) ([]models.Item, int, error)
	UpdateItem(ctx context.Context, itemID uuid.UUID, update models.ItemUpdate) (*models.Item, error)
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// RequestImage представляет структуру изображения в запросе создания вещи
type RequestImage struct {
	URL                string          `json:"url"`
	PublicID           string          `json:"public_id"`
	IsMain             bool            `json:"is_main"`
	CloudinaryResponse json.RawMessage `json:"cloudinary_response,omitempty"`
}

// ItemService представляет сервис для работы с каталогом вещей
type ItemService struct {
	store      ItemStore
	jwtService *utils.JWTService
	log        *logrus.Entry
}

// NewItemService создает новый экземпляр ItemService
func NewItemService(store ItemStore, jwtService *utils.JWTService, log *logrus.Entry) *ItemService {
	return &ItemService{store: store, jwtService: jwtService, log: log}
}

type createItemRequest struct {
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	Category     string              `json:"category"`
	Size         string              `json:"size"`
	Condition    string              `json:"condition"`
	Brand        string              `json:"brand"`
	ExchangeType models.ExchangeKind `json:"exchange_type"`
	PointsValue  int64               `json:"points_value"`
	Location     string              `json:"location"`
	Tags         []string            `json:"tags"`
	Images       []RequestImage      `json:"images"`
}

// validate проверяет запрос и подставляет значения по умолчанию
func (r *createItemRequest) validate() error {
	r.Title = strings.TrimSpace(r.Title)
	if r.Condition == "" {
		r.Condition = "good"
	}
	if r.ExchangeType == "" {
		r.ExchangeType = models.KindSwap
	}
	err := validateAttributes(&models.Item{
		Title:        r.Title,
		Category:     r.Category,
		Size:         r.Size,
		Condition:    r.Condition,
		ExchangeType: r.ExchangeType,
		PointsValue:  r.PointsValue,
	})
	if err != nil {
		return err
	}
	if len(r.Images) == 0 {
		return exchange.Validationf("Добавьте хотя бы одно изображение")
	}
	if len(r.Images) > maxImages {
		return exchange.Validationf("Не больше %d изображений", maxImages)
	}
	return nil
}

// validateAttributes проверяет характеристики вещи при создании и изменении
func validateAttributes(item *models.Item) error {
	if item.Title == "" {
		return exchange.Validationf("Название обязательно")
	}
	if !models.Contains(models.ItemCategories, item.Category) {
		return exchange.Validationf("Недопустимая категория: %q", item.Category)
	}
	if !models.Contains(models.ItemSizes, item.Size) {
		return exchange.Validationf("Недопустимый размер: %q", item.Size)
	}
	if !models.Contains(models.ItemConditions, item.Condition) {
		return exchange.Validationf("Недопустимое состояние: %q", item.Condition)
	}
	if !item.ExchangeType.Valid() {
		return exchange.Validationf("Недопустимый тип обмена: %q", item.ExchangeType)
	}
	if item.PointsValue < 0 {
		return exchange.Validationf("Оценка в баллах не может быть отрицательной")
	}
	if item.ExchangeType == models.KindPoints && item.PointsValue == 0 {
		return exchange.Validationf("Укажите оценку вещи в баллах")
	}
	return nil
}

// buildImages формирует изображения вещи, извлекая превью и метаданные из ответа Cloudinary
func (s *ItemService) buildImages(images []RequestImage) []models.ItemImage {
	out := make([]models.ItemImage, 0, len(images))
	hasMain := false
	for i, img := range images {
		image := models.ItemImage{
			URL:      img.URL,
			PublicID: img.PublicID,
			IsMain:   img.IsMain && !hasMain,
			Position: i,
		}
		hasMain = hasMain || image.IsMain

		if len(img.CloudinaryResponse) > 0 {
			cr, err := models.ParseCloudinaryResponse(img.CloudinaryResponse)
			if err != nil {
				s.log.WithError(err).Warn("Ошибка парсинга ответа Cloudinary")
			} else {
				image.PreviewURL = models.ExtractPreviewURL(cr)
				image.Metadata = models.ExtractMetadata(cr)
				if image.URL == "" {
					image.URL = cr.SecureURL
				}
				if image.PublicID == "" {
					image.PublicID = cr.PublicID
				}
			}
		}
		out = append(out, image)
	}

	// Первое изображение - основное, если не выбрано другое
	if !hasMain && len(out) > 0 {
		out[0].IsMain = true
	}
	return out
}

// CreateItem обрабатывает добавление вещи в каталог. Новая вещь ждёт модерации.
func (s *ItemService) CreateItem(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	var req createItemRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}
	if err := req.validate(); err != nil {
		return utils.SendError(c, s.log, err, "создание вещи")
	}

	images := s.buildImages(req.Images)
	for _, img := range images {
		if img.URL == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "У изображения отсутствует URL"})
		}
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	owner, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return utils.SendError(c, s.log, err, "создание вещи")
	}
	if owner.IsBanned {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Пользователь заблокирован"})
	}

	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}
	item := &models.Item{
		ID:           uuid.New(),
		OwnerID:      userID,
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		Size:         req.Size,
		Condition:    req.Condition,
		Brand:        req.Brand,
		Images:       images,
		ExchangeType: req.ExchangeType,
		PointsValue:  req.PointsValue,
		IsAvailable:  true,
		Location:     req.Location,
		Tags:         tags,
	}
	if item.Location == "" {
		item.Location = owner.Location
	}

	if err := s.store.CreateItem(ctx, item); err != nil {
		return utils.SendError(c, s.log, err, "создание вещи")
	}

	s.log.WithFields(logrus.Fields{"item_id": item.ID, "owner_id": userID}).Info("Вещь добавлена и ожидает модерации")
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"item":    item,
		"message": "Вещь добавлена и отправлена на модерацию",
	})
}

// GetMyItems возвращает вещи текущего пользователя
func (s *ItemService) GetMyItems(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	list, err := s.store.ListItemsByOwner(ctx, userID)
	if err != nil {
		return utils.SendError(c, s.log, err, "получение списка вещей")
	}

	return c.JSON(fiber.Map{
		"items": list,
		"count": len(list),
	})
}

// GetItem возвращает вещь. Неодобренные вещи видны только владельцу и администраторам.
func (s *ItemService) GetItem(c fiber.Ctx) error {
	// Анонимный просмотр допустим: userID останется uuid.Nil
	userID, _ := middleware.UserID(c)

	itemID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID вещи"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return utils.SendError(c, s.log, err, "получение вещи")
	}

	if !item.IsApproved && item.OwnerID != userID {
		viewer, err := s.lookupViewer(ctx, userID)
		if err != nil && !errors.Is(err, exchange.ErrNotFound) {
			return utils.SendError(c, s.log, err, "получение вещи")
		}
		if viewer == nil || !viewer.IsAdmin() {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "вещь не найдена"})
		}
	}

	return c.JSON(fiber.Map{"item": item})
}

func (s *ItemService) lookupViewer(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	if userID == uuid.Nil {
		return nil, nil
	}
	return s.store.GetUser(ctx, userID)
}

// GetItems возвращает страницу публичного каталога с фильтрами
func (s *ItemService) GetItems(c fiber.Ctx) error {
	page := utils.ParsePageQuery(c, defaultPageLimit)
	filter := models.ItemFilter{
		Category:     c.Query("category"),
		Size:         c.Query("size"),
		Condition:    c.Query("condition"),
		ExchangeType: models.ExchangeKind(c.Query("exchange_type")),
		Search:       strings.TrimSpace(c.Query("search")),
		Limit:        page.Limit,
		Offset:       page.Offset(),
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	list, total, err := s.store.ListItems(ctx, filter)
	if err != nil {
		return utils.SendError(c, s.log, err, "получение каталога")
	}

	return c.JSON(fiber.Map{
		"items":        list,
		"total":        total,
		"total_pages":  page.TotalPages(total),
		"current_page": page.Page,
	})
}

// UpdateItem изменяет характеристики вещи. Доступно только владельцу.
// Открытые предложения за баллы сохраняют оценку, зафиксированную при их создании.
func (s *ItemService) UpdateItem(c fiber.Ctx) error {
	userID, itemID, err := ownerAndItem(c)
	if err != nil {
		return err
	}

	var req models.ItemUpdate
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	item, err := s.ownedItem(ctx, userID, itemID)
	if err != nil {
		return utils.SendError(c, s.log, err, "изменение вещи")
	}
	if !item.IsAvailable {
		return utils.SendError(c, s.log, exchange.Conflictf("Обменянную вещь нельзя изменить"), "изменение вещи")
	}

	// Проверяем результат изменения до записи
	preview := *item
	req.Apply(&preview, time.Now())
	if err := validateAttributes(&preview); err != nil {
		return utils.SendError(c, s.log, err, "изменение вещи")
	}

	updated, err := s.store.UpdateItem(ctx, itemID, req)
	if err != nil {
		return utils.SendError(c, s.log, err, "изменение вещи")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"item":    updated,
		"message": "Вещь обновлена",
	})
}

// DeleteItem удаляет вещь из каталога. Доступно только владельцу.
func (s *ItemService) DeleteItem(c fiber.Ctx) error {
	userID, itemID, err := ownerAndItem(c)
	if err != nil {
		return err
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	if _, err := s.ownedItem(ctx, userID, itemID); err != nil {
		return utils.SendError(c, s.log, err, "удаление вещи")
	}
	if err := s.store.DeleteItem(ctx, itemID); err != nil {
		return utils.SendError(c, s.log, err, "удаление вещи")
	}

	s.log.WithFields(logrus.Fields{"item_id": itemID, "owner_id": userID}).Info("Вещь удалена")
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Вещь удалена",
	})
}

func (s *ItemService) ownedItem(ctx context.Context, userID, itemID uuid.UUID) (*models.Item, error) {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.OwnerID != userID {
		return nil, exchange.Forbiddenf("Нет прав на изменение этой вещи")
	}
	return item, nil
}

// ownerAndItem извлекает текущего пользователя и ID вещи из запроса
func ownerAndItem(c fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	userID, err := middleware.UserID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "Пользователь не авторизован")
	}

	itemID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Неверный формат ID вещи")
	}
	return userID, itemID, nil
}
