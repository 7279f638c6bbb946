package db

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/rajivgeraev/rewear-api/internal/models"
)

// PlatformStats собирает сводку по платформе параллельными запросами
func (s *Store) PlatformStats(ctx context.Context) (*models.PlatformStats, error) {
	var stats models.PlatformStats
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := s.pool.QueryRow(gctx, `
			SELECT COUNT(*), COALESCE(SUM(points), 0)::bigint FROM users
		`).Scan(&stats.TotalUsers, &stats.TotalPoints)
		if err != nil {
			return fmt.Errorf("ошибка при подсчете пользователей: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		err := s.pool.QueryRow(gctx, `
			SELECT COUNT(*),
				COUNT(*) FILTER (WHERE is_approved),
				COUNT(*) FILTER (WHERE NOT is_approved)
			FROM items
		`).Scan(&stats.TotalItems, &stats.ApprovedItems, &stats.PendingItems)
		if err != nil {
			return fmt.Errorf("ошибка при подсчете вещей: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		err := s.pool.QueryRow(gctx, `
			SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'completed') FROM exchanges
		`).Scan(&stats.TotalExchanges, &stats.CompletedExchanges)
		if err != nil {
			return fmt.Errorf("ошибка при подсчете обменов: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &stats, nil
}
