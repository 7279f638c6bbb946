package cloudinary

import (
	"net/url"
	"strconv"
	"time"

	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rajivgeraev/rewear-api/internal/config"
	"github.com/rajivgeraev/rewear-api/internal/middleware"
	"github.com/rajivgeraev/rewear-api/internal/utils"
)

const uploadRoot = "rewear/items"

// CloudinaryService предоставляет методы для работы с Cloudinary
type CloudinaryService struct {
	cfg        config.CloudinaryConfig
	jwtService *utils.JWTService
	log        *logrus.Entry
	now        func() time.Time
}

// NewCloudinaryService создает новый экземпляр CloudinaryService
func NewCloudinaryService(cfg config.CloudinaryConfig, jwtService *utils.JWTService, log *logrus.Entry) *CloudinaryService {
	return &CloudinaryService{
		cfg:        cfg,
		jwtService: jwtService,
		log:        log,
		now:        time.Now,
	}
}

// GenerateSignature создаёт подпись параметров загрузки
func (s *CloudinaryService) GenerateSignature(params url.Values) (string, error) {
	return api.SignParameters(params, s.cfg.APISecret)
}

// GenerateUploadParams создаёт параметры для подписанной загрузки изображений вещи
func (s *CloudinaryService) GenerateUploadParams(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	if s.cfg.CloudName == "" || s.cfg.APISecret == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Загрузка изображений не настроена"})
	}

	// Группа загрузки объединяет изображения одной вещи
	uploadGroupID := c.Query("upload_group_id")
	if _, err := uuid.Parse(uploadGroupID); err != nil {
		uploadGroupID = uuid.New().String()
	}

	timestamp := strconv.FormatInt(s.now().Unix(), 10)
	folder := uploadRoot + "/" + userID.String() + "/" + uploadGroupID

	params := url.Values{
		"timestamp": {timestamp},
		"folder":    {folder},
	}
	if s.cfg.UploadPreset != "" {
		params.Set("upload_preset", s.cfg.UploadPreset)
	}

	signature, err := s.GenerateSignature(params)
	if err != nil {
		s.log.WithError(err).Error("Ошибка при подписи параметров Cloudinary")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Не удалось подписать параметры загрузки"})
	}

	return c.JSON(fiber.Map{
		"timestamp":       timestamp,
		"signature":       signature,
		"api_key":         s.cfg.APIKey,
		"cloud_name":      s.cfg.CloudName,
		"folder":          folder,
		"upload_preset":   s.cfg.UploadPreset,
		"upload_group_id": uploadGroupID,
	})
}
