package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rajivgeraev/rewear-api/internal/exchange"
)

// Коды ошибок PostgreSQL
const (
	codeUniqueViolation = "23505"
	codeCheckViolation  = "23514"
	codeFKViolation     = "23503"
)

// querier – общее подмножество пула и транзакции
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store – хранилище в PostgreSQL
type Store struct {
	pool         *pgxpool.Pool
	signupPoints int64
	now          func() time.Time
}

var _ exchange.Store = (*Store)(nil)

// NewStore создает хранилище поверх пула; новые пользователи получают signupPoints баллов
func NewStore(pool *pgxpool.Pool, signupPoints int64) *Store {
	return &Store{
		pool:         pool,
		signupPoints: signupPoints,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Repos возвращает хранилища, работающие вне транзакции
func (s *Store) Repos() exchange.Repos {
	return reposFor(s.pool, s.now)
}

// Atomically выполняет fn в одной транзакции
func (s *Store) Atomically(ctx context.Context, fn func(r exchange.Repos) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("ошибка при начале транзакции: %w", err)
	}
	defer tx.Rollback(ctx) // Откатываем транзакцию в случае ошибки

	if err := fn(reposFor(tx, s.now)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка при фиксации транзакции: %w", err)
	}
	return nil
}

func reposFor(q querier, now func() time.Time) exchange.Repos {
	return exchange.Repos{
		Ledger:   &ledger{q: q, now: now},
		Accounts: &accounts{q: q, now: now},
		Catalog:  &catalog{q: q, now: now},
	}
}

// rowScanner – общее подмножество pgx.Row и pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// pgErrorCode возвращает код ошибки PostgreSQL или пустую строку
func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// notFound заменяет pgx.ErrNoRows доменной ошибкой
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return exchange.NotFoundf(format, args...)
	}
	return err
}
