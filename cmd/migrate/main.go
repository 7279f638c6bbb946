package main

import (
	"context"
	"database/sql"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/rajivgeraev/rewear-api/internal/config"
	"github.com/rajivgeraev/rewear-api/internal/db/migrations"
	applog "github.com/rajivgeraev/rewear-api/internal/logger"
)

func main() {
	// Миграциям нужна только база данных, остальные параметры не проверяем
	_ = godotenv.Load()
	cfg := config.FromEnv()
	log := applog.New(cfg.AppEnv, cfg.LogLevel)

	sqlDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Ошибка при открытии базы данных: %v", err)
	}
	defer sqlDB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		log.Fatalf("❌ База данных недоступна: %v", err)
	}

	applied, err := migrations.Apply(ctx, sqlDB)
	if err != nil {
		log.Fatalf("❌ Ошибка миграции: %v", err)
	}

	if len(applied) == 0 {
		log.Info("✅ Схема уже актуальна")
		return
	}
	log.WithField("versions", applied).Info("✅ Миграции применены")
}
