package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Драйверы хранилища
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config структура конфигурации
type Config struct {
	Port             string
	AppEnv           string // production, staging, local
	LogLevel         string
	TelegramBotToken string
	JWTSecret        string
	StorageDriver    string
	SignupPoints     int64
	DatabaseURL      string
	DatabaseConfig   DatabaseConfig
	RedisConfig      RedisConfig
	CloudinaryConfig CloudinaryConfig
}

// DatabaseConfig содержит конфигурацию базы данных
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig содержит конфигурацию кэша сводок пользователей.
// Пустой Addr отключает кэш.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// CloudinaryConfig содержит конфигурацию для Cloudinary
type CloudinaryConfig struct {
	CloudName    string
	APIKey       string
	APISecret    string
	UploadPreset string
}

// LoadConfig загружает переменные из .env
func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("⚠️ .env файл не найден, используем переменные окружения")
	}

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Ошибка конфигурации: %v", err)
	}
	return cfg
}

// FromEnv собирает конфигурацию из переменных окружения без проверки
func FromEnv() *Config {
	dbConfig := DatabaseConfig{
		Host:     getEnv("PGHOST", "localhost"),
		Port:     getEnv("PGPORT", "5432"),
		User:     getEnv("PGUSER", "rewear_user"),
		Password: getEnv("PGPASSWORD", "rewear_pass"),
		Name:     getEnv("PGDATABASE", "rewear"),
		SSLMode:  getEnv("PGSSLMODE", "disable"),
		MaxConns: getEnvAsInt("DB_MAX_CONNS", 10),
		MinConns: getEnvAsInt("DB_MIN_CONNS", 2),
	}

	// Формируем строку подключения к базе данных
	dbURL := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		dbConfig.User, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name, dbConfig.SSLMode)

	redisConfig := RedisConfig{
		Addr:     getEnv("REDIS_ADDR", ""),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvAsInt("REDIS_DB", 0),
		TTL:      getEnvAsDuration("SUMMARY_CACHE_TTL", 5*time.Minute),
	}

	cloudinaryConfig := CloudinaryConfig{
		CloudName:    getEnv("CLOUDINARY_CLOUD_NAME", ""),
		APIKey:       getEnv("CLOUDINARY_API_KEY", ""),
		APISecret:    getEnv("CLOUDINARY_API_SECRET", ""),
		UploadPreset: getEnv("CLOUDINARY_UPLOAD_PRESET", "rewear_items"),
	}

	return &Config{
		Port:             getEnv("PORT", "8080"),
		AppEnv:           getEnv("APP_ENV", "production"), // По умолчанию production
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		StorageDriver:    getEnv("STORAGE_DRIVER", StoragePostgres),
		SignupPoints:     int64(getEnvAsInt("SIGNUP_POINTS", 100)),
		DatabaseURL:      dbURL,
		DatabaseConfig:   dbConfig,
		RedisConfig:      redisConfig,
		CloudinaryConfig: cloudinaryConfig,
	}
}

// IsLocal сообщает, запущено ли приложение локально
func (c *Config) IsLocal() bool {
	return c.AppEnv == "local"
}

// Validate проверяет обязательные параметры
func (c *Config) Validate() error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("не задан JWT_SECRET"))
	}
	if c.TelegramBotToken == "" && !c.IsLocal() {
		errs = append(errs, errors.New("не задан TELEGRAM_BOT_TOKEN"))
	}
	if c.StorageDriver != StoragePostgres && c.StorageDriver != StorageMemory {
		errs = append(errs, fmt.Errorf("неизвестный STORAGE_DRIVER: %q", c.StorageDriver))
	}
	if c.SignupPoints < 0 {
		errs = append(errs, errors.New("SIGNUP_POINTS не может быть отрицательным"))
	}
	if c.DatabaseConfig.MinConns > c.DatabaseConfig.MaxConns {
		errs = append(errs, errors.New("DB_MIN_CONNS больше DB_MAX_CONNS"))
	}

	return errors.Join(errs...)
}

// getEnv получает переменную окружения или использует дефолтное значение
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("⚠️ Некорректное значение %s=%q, используем %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("⚠️ Некорректное значение %s=%q, используем %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}
