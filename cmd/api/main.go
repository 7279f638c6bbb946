package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/rajivgeraev/rewear-api/internal/cache"
	"github.com/rajivgeraev/rewear-api/internal/config"
	"github.com/rajivgeraev/rewear-api/internal/db"
	"github.com/rajivgeraev/rewear-api/internal/db/memory"
	"github.com/rajivgeraev/rewear-api/internal/exchange"
	applog "github.com/rajivgeraev/rewear-api/internal/logger"
	"github.com/rajivgeraev/rewear-api/internal/metrics"
	"github.com/rajivgeraev/rewear-api/internal/services/admin"
	"github.com/rajivgeraev/rewear-api/internal/services/auth"
	"github.com/rajivgeraev/rewear-api/internal/services/cloudinary"
	"github.com/rajivgeraev/rewear-api/internal/services/exchanges"
	"github.com/rajivgeraev/rewear-api/internal/services/items"
)

// appStore – хранилище, которое нужно всем сервисам API
type appStore interface {
	exchange.Store
	auth.UserRegistry
	items.ItemStore
	admin.ModerationStore
}

func main() {
	// Загружаем конфигурацию
	cfg := config.LoadConfig()
	log := applog.New(cfg.AppEnv, cfg.LogLevel)

	// Инициализируем хранилище
	var store appStore
	switch cfg.StorageDriver {
	case config.StorageMemory:
		log.Warn("⚠️ Используется хранилище в памяти, данные не сохраняются между запусками")
		store = memory.New(cfg.SignupPoints)
	default:
		if err := db.InitDB(cfg, applog.ForService(log, "db")); err != nil {
			log.Fatalf("❌ Ошибка при инициализации базы данных: %v", err)
		}
		defer db.CloseDB()
		store = db.NewStore(db.Pool, cfg.SignupPoints)
	}

	summaries := newSummaryCache(cfg, log)
	app := newApp(cfg, log, store, summaries)

	// Останавливаем сервер по сигналу
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("Остановка сервера...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.WithError(err).Error("Ошибка при остановке сервера")
		}
	}()

	// Запускаем сервер
	log.Infof("✅ ReWear API запущен на порту %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Ошибка сервера: %v", err)
	}
}

// newSummaryCache подключает Redis, если он настроен и доступен
func newSummaryCache(cfg *config.Config, log *logrus.Logger) cache.SummaryCache {
	if cfg.RedisConfig.Addr == "" {
		return cache.Noop{}
	}

	redisCache := cache.NewRedisCache(cfg.RedisConfig.Addr, cfg.RedisConfig.Password, cfg.RedisConfig.DB, cfg.RedisConfig.TTL)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := redisCache.Ping(ctx); err != nil {
		log.WithError(err).Warn("⚠️ Redis недоступен, кэш сводок отключен")
		_ = redisCache.Close()
		return cache.Noop{}
	}

	log.WithField("addr", cfg.RedisConfig.Addr).Info("✅ Кэш сводок подключен к Redis")
	return redisCache
}

// newApp создает приложение Fiber со всеми маршрутами
func newApp(cfg *config.Config, log *logrus.Logger, store appStore, summaries cache.SummaryCache) *fiber.App {
	// Создаём экземпляр Fiber
	app := fiber.New(fiber.Config{
		AppName:      "ReWear API",
		ErrorHandler: errorHandler,
	})

	// Добавляем middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowCredentials: false,
	}))

	app.Get("/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	// Создаём сервисы
	core := exchange.NewService(store, applog.ForService(log, "exchange"))
	authService := auth.NewAuthService(cfg, store, applog.ForService(log, "auth"))
	jwtService := authService.GetJWTService()

	itemService := items.NewItemService(store, jwtService, applog.ForService(log, "items"))
	exchangeService := exchanges.NewExchangeService(core, store, summaries, jwtService, applog.ForService(log, "exchanges"))
	adminService := admin.NewAdminService(store, core, jwtService, applog.ForService(log, "admin"))
	cloudinaryService := cloudinary.NewCloudinaryService(cfg.CloudinaryConfig, jwtService, applog.ForService(log, "cloudinary"))

	// Регистрируем маршруты
	authService.SetupRoutes(app)
	exchangeService.SetupRoutes(app)
	itemService.SetupRoutes(app)
	adminService.SetupRoutes(app)
	cloudinaryService.SetupRoutes(app)

	return app
}

// errorHandler обрабатывает ошибки Fiber
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Внутренняя ошибка сервера"

	// Проверяем, является ли ошибка из Fiber
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	// Отправляем ошибку в JSON
	return c.Status(code).JSON(fiber.Map{
		"error": message,
	})
}
