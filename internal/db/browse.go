package db

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/rajivgeraev/rewear-api/internal/models"
)

// conditions собирает WHERE из условий с одним позиционным параметром
type conditions struct {
	where []string
	args  []any
}

// add добавляет условие; %[1]d в cond заменяется номером параметра
func (c *conditions) add(cond string, arg any) {
	c.args = append(c.args, arg)
	c.where = append(c.where, fmt.Sprintf(cond, len(c.args)))
}

func (c *conditions) sql() string {
	if len(c.where) == 0 {
		return "TRUE"
	}
	return strings.Join(c.where, " AND ")
}

// page добавляет LIMIT и OFFSET; нулевой limit снимает ограничение
func (c *conditions) page(limit, offset int) (string, []any) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	args := append(append([]any{}, c.args...), lim, offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args
}

// likePattern экранирует спецсимволы LIKE и оборачивает строку в %
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func itemConditions(f models.ItemFilter) *conditions {
	c := &conditions{where: []string{"is_approved", "is_available"}}
	if f.OwnerID != nil {
		c.add("owner_id = $%[1]d", *f.OwnerID)
	}
	if f.Category != "" {
		c.add("category = $%[1]d", f.Category)
	}
	if f.Size != "" {
		c.add("size = $%[1]d", f.Size)
	}
	if f.Condition != "" {
		c.add("condition = $%[1]d", f.Condition)
	}
	if f.ExchangeType != "" {
		c.add("exchange_type = $%[1]d", string(f.ExchangeType))
	}
	if f.Search != "" {
		c.add("(title ILIKE $%[1]d OR description ILIKE $%[1]d OR COALESCE(brand, '') ILIKE $%[1]d)", likePattern(f.Search))
	}
	return c
}

// ListItems возвращает страницу публичного каталога, новые первыми, и общее число подходящих вещей
func (s *Store) ListItems(ctx context.Context, filter models.ItemFilter) ([]models.Item, int, error) {
	cond := itemConditions(filter)
	var (
		list  []models.Item
		total int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := s.pool.QueryRow(gctx, `SELECT COUNT(*) FROM items WHERE `+cond.sql(), cond.args...).Scan(&total)
		if err != nil {
			return fmt.Errorf("ошибка при подсчете вещей каталога: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		paging, args := cond.page(filter.Limit, filter.Offset)
		rows, err := s.pool.Query(gctx, `
			SELECT `+itemColumns+`
			FROM items
			WHERE `+cond.sql()+`
			ORDER BY created_at DESC, id DESC`+paging, args...)
		if err != nil {
			return fmt.Errorf("ошибка при получении каталога: %w", err)
		}
		list, err = collectItems(rows)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// ListUsers возвращает страницу пользователей, новые первыми, и общее число подходящих
func (s *Store) ListUsers(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	cond := &conditions{}
	if filter.Search != "" {
		cond.add(`(COALESCE(username, '') ILIKE $%[1]d
			OR COALESCE(first_name, '') ILIKE $%[1]d
			OR COALESCE(last_name, '') ILIKE $%[1]d)`, likePattern(filter.Search))
	}

	var total int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE `+cond.sql(), cond.args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка при подсчете пользователей: %w", err)
	}

	paging, args := cond.page(filter.Limit, filter.Offset)
	rows, err := s.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE `+cond.sql()+`
		ORDER BY created_at DESC, id DESC`+paging, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка при получении пользователей: %w", err)
	}
	defer rows.Close()

	list := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ошибка при чтении пользователя: %w", err)
		}
		list = append(list, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка при обходе пользователей: %w", err)
	}
	return list, total, nil
}
