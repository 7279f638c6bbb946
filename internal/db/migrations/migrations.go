// Package migrations применяет SQL-схему из встроенных файлов.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed sql/*.sql
var files embed.FS

const createVersionsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version    TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// Migration – один файл схемы
type Migration struct {
	Version string
	SQL     string
}

// Load возвращает миграции в порядке применения
func Load() ([]Migration, error) {
	names, err := fs.Glob(files, "sql/*.sql")
	if err != nil {
		return nil, fmt.Errorf("ошибка при поиске миграций: %w", err)
	}
	sort.Strings(names)

	list := make([]Migration, 0, len(names))
	for _, name := range names {
		data, err := files.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("ошибка при чтении миграции %s: %w", name, err)
		}
		version := strings.TrimSuffix(strings.TrimPrefix(name, "sql/"), ".sql")
		list = append(list, Migration{Version: version, SQL: string(data)})
	}
	return list, nil
}

// Apply применяет ещё не применённые миграции, каждую в своей транзакции.
// Возвращает версии, применённые в этом запуске.
func Apply(ctx context.Context, db *sql.DB) ([]string, error) {
	if _, err := db.ExecContext(ctx, createVersionsTable); err != nil {
		return nil, fmt.Errorf("ошибка при создании таблицы версий: %w", err)
	}

	list, err := Load()
	if err != nil {
		return nil, err
	}

	applied := []string{}
	for _, m := range list {
		var done bool
		err := db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version).Scan(&done)
		if err != nil {
			return applied, fmt.Errorf("ошибка при проверке версии %s: %w", m.Version, err)
		}
		if done {
			continue
		}

		if err := applyOne(ctx, db, m); err != nil {
			return applied, err
		}
		applied = append(applied, m.Version)
	}
	return applied, nil
}

func applyOne(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка при начале транзакции: %w", err)
	}
	defer tx.Rollback() // Откатываем транзакцию в случае ошибки

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("ошибка при применении миграции %s: %w", m.Version, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version); err != nil {
		return fmt.Errorf("ошибка при записи версии %s: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка при фиксации миграции %s: %w", m.Version, err)
	}
	return nil
}
