package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rajivgeraev/rewear-api/internal/exchange"
	"github.com/rajivgeraev/rewear-api/internal/models"
)

const itemColumns = `id, owner_id, title, description, category, size, condition, brand, images,
	exchange_type, points_value, is_available, is_approved, approved_by, approved_at,
	location, tags, created_at, updated_at`

func scanItem(row rowScanner) (*models.Item, error) {
	var item models.Item
	var brand, location pgtype.Text
	var approvedBy pgtype.UUID
	var approvedAt pgtype.Timestamptz

	err := row.Scan(
		&item.ID, &item.OwnerID, &item.Title, &item.Description, &item.Category, &item.Size,
		&item.Condition, &brand, &item.Images, &item.ExchangeType, &item.PointsValue,
		&item.IsAvailable, &item.IsApproved, &approvedBy, &approvedAt,
		&location, &item.Tags, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	// Преобразуем nullable поля
	if brand.Valid {
		item.Brand = brand.String
	}
	if location.Valid {
		item.Location = location.String
	}
	if approvedBy.Valid {
		id := uuid.UUID(approvedBy.Bytes)
		item.ApprovedBy = &id
	}
	if approvedAt.Valid {
		t := approvedAt.Time.UTC()
		item.ApprovedAt = &t
	}
	if item.Images == nil {
		item.Images = []models.ItemImage{}
	}
	if item.Tags == nil {
		item.Tags = []string{}
	}
	return &item, nil
}

func collectItems(rows pgx.Rows) ([]models.Item, error) {
	defer rows.Close()

	list := []models.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка при чтении вещи: %w", err)
		}
		list = append(list, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка при обходе вещей: %w", err)
	}
	return list, nil
}

func getItemByID(ctx context.Context, q querier, itemID uuid.UUID) (*models.Item, error) {
	return queryItem(ctx, q, `SELECT `+itemColumns+` FROM items WHERE id = $1`, itemID)
}

func queryItem(ctx context.Context, q querier, query string, itemID uuid.UUID) (*models.Item, error) {
	item, err := scanItem(q.QueryRow(ctx, query, itemID))
	if err != nil {
		return nil, notFound(err, "вещь не найдена")
	}
	return item, nil
}

type catalog struct {
	q   querier
	now func() time.Time
}

func (c *catalog) GetItem(ctx context.Context, itemID uuid.UUID) (*models.Item, error) {
	return getItemByID(ctx, c.q, itemID)
}

func (c *catalog) GetItemForShare(ctx context.Context, itemID uuid.UUID) (*models.Item, error) {
	return queryItem(ctx, c.q, `SELECT `+itemColumns+` FROM items WHERE id = $1 FOR SHARE`, itemID)
}

func (c *catalog) SetAvailability(ctx context.Context, itemID uuid.UUID, available bool) (bool, error) {
	tag, err := c.q.Exec(ctx, `
		UPDATE items SET is_available = $2, updated_at = $3
		WHERE id = $1 AND is_available <> $2
	`, itemID, available, c.now())
	if err != nil {
		return false, fmt.Errorf("ошибка при изменении доступности вещи: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	// Флаг уже имел нужное значение или вещи нет
	var exists bool
	if err := c.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM items WHERE id = $1)`, itemID).Scan(&exists); err != nil {
		return false, fmt.Errorf("ошибка при проверке вещи: %w", err)
	}
	if !exists {
		return false, exchange.NotFoundf("вещь не найдена")
	}
	return false, nil
}

func (c *catalog) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	var count int
	if err := c.q.QueryRow(ctx, `SELECT COUNT(*) FROM items WHERE owner_id = $1`, ownerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка при подсчете вещей: %w", err)
	}
	return count, nil
}

// CreateItem добавляет вещь в каталог
func (s *Store) CreateItem(ctx context.Context, item *models.Item) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	now := s.now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	if item.Images == nil {
		item.Images = []models.ItemImage{}
	}
	if item.Tags == nil {
		item.Tags = []string{}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO items (id, owner_id, title, description, category, size, condition, brand, images,
			exchange_type, points_value, is_available, is_approved, location, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, item.ID, item.OwnerID, item.Title, item.Description, item.Category, item.Size, item.Condition,
		item.Brand, item.Images, item.ExchangeType, item.PointsValue, item.IsAvailable, item.IsApproved,
		item.Location, item.Tags, item.CreatedAt, item.UpdatedAt)

	switch pgErrorCode(err) {
	case "":
		return nil
	case codeFKViolation:
		return exchange.NotFoundf("владелец вещи не найден")
	case codeUniqueViolation:
		return exchange.Conflictf("вещь %s уже существует", item.ID)
	default:
		return fmt.Errorf("ошибка при создании вещи: %w", err)
	}
}

// GetItem получает вещь по ID
func (s *Store) GetItem(ctx context.Context, itemID uuid.UUID) (*models.Item, error) {
	return getItemByID(ctx, s.pool, itemID)
}

// ListItemsByOwner возвращает вещи пользователя, новые первыми
func (s *Store) ListItemsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Item, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении вещей пользователя: %w", err)
	}
	return collectItems(rows)
}

// ListPendingItems возвращает вещи, ещё не рассмотренные модератором
func (s *Store) ListPendingItems(ctx context.Context) ([]models.Item, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE NOT is_approved AND approved_at IS NULL
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении вещей на модерации: %w", err)
	}
	return collectItems(rows)
}

// ModerateItem фиксирует решение модератора по вещи
func (s *Store) ModerateItem(ctx context.Context, itemID, adminID uuid.UUID, approved bool) (*models.Item, error) {
	now := s.now()
	item, err := scanItem(s.pool.QueryRow(ctx, `
		UPDATE items
		SET is_approved = $2, approved_by = $3, approved_at = $4, updated_at = $4
		WHERE id = $1
		RETURNING `+itemColumns,
		itemID, approved, adminID, now))
	if err != nil {
		return nil, notFound(err, "вещь не найдена")
	}
	return item, nil
}

// UpdateItem применяет изменение владельца к вещи под блокировкой строки
func (s *Store) UpdateItem(ctx context.Context, itemID uuid.UUID, update models.ItemUpdate) (*models.Item, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("ошибка при начале транзакции: %w", err)
	}
	defer tx.Rollback(ctx) // Откатываем транзакцию в случае ошибки

	item, err := queryItem(ctx, tx, `SELECT `+itemColumns+` FROM items WHERE id = $1 FOR UPDATE`, itemID)
	if err != nil {
		return nil, err
	}
	update.Apply(item, s.now())

	updated, err := scanItem(tx.QueryRow(ctx, `
		UPDATE items
		SET title = $2, description = $3, category = $4, size = $5, condition = $6, brand = $7,
			exchange_type = $8, points_value = $9, location = $10, tags = $11, updated_at = $12
		WHERE id = $1
		RETURNING `+itemColumns,
		item.ID, item.Title, item.Description, item.Category, item.Size, item.Condition, item.Brand,
		item.ExchangeType, item.PointsValue, item.Location, item.Tags, item.UpdatedAt))
	if pgErrorCode(err) == codeCheckViolation {
		return nil, exchange.Validationf("недопустимые характеристики вещи")
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка при обновлении вещи: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("ошибка при фиксации транзакции: %w", err)
	}
	return updated, nil
}

// DeleteItem удаляет вещь. Вещь, упомянутая в журнале обменов, не удаляется.
func (s *Store) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM items WHERE id = $1`, itemID)
	if err != nil {
		if pgErrorCode(err) == codeFKViolation {
			return exchange.Conflictf("вещь участвует в обменах и не может быть удалена")
		}
		return fmt.Errorf("ошибка при удалении вещи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return exchange.NotFoundf("вещь не найдена")
	}
	return nil
}
