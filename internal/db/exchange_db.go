package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rajivgeraev/rewear-api/internal/exchange"
	"github.com/rajivgeraev/rewear-api/internal/models"
)

const exchangeColumns = `id, kind, initiator_id, recipient_id, initiator_item_id, recipient_item_id,
	points_amount, status, message, created_at, updated_at, completed_at`

type ledger struct {
	q   querier
	now func() time.Time
}

func scanExchange(row rowScanner) (*models.Exchange, error) {
	var e models.Exchange
	var initiatorItemID pgtype.UUID
	var message pgtype.Text
	var completedAt pgtype.Timestamptz

	err := row.Scan(
		&e.ID, &e.Kind, &e.InitiatorID, &e.RecipientID, &initiatorItemID, &e.RecipientItemID,
		&e.PointsAmount, &e.Status, &message, &e.CreatedAt, &e.UpdatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	// Преобразуем nullable поля
	if initiatorItemID.Valid {
		id := uuid.UUID(initiatorItemID.Bytes)
		e.InitiatorItemID = &id
	}
	if message.Valid {
		e.Message = message.String
	}
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		e.CompletedAt = &t
	}
	return &e, nil
}

func collectExchanges(rows pgx.Rows) ([]models.Exchange, error) {
	defer rows.Close()

	list := []models.Exchange{}
	for rows.Next() {
		e, err := scanExchange(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка при чтении обмена: %w", err)
		}
		list = append(list, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка при обходе обменов: %w", err)
	}
	return list, nil
}

func (l *ledger) Create(ctx context.Context, e *models.Exchange) error {
	if err := exchange.ValidateNew(e); err != nil {
		return err
	}

	_, err := l.q.Exec(ctx, `
		INSERT INTO exchanges (id, kind, initiator_id, recipient_id, initiator_item_id, recipient_item_id,
			points_amount, status, message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, e.ID, e.Kind, e.InitiatorID, e.RecipientID, e.InitiatorItemID, e.RecipientItemID,
		e.PointsAmount, e.Status, e.Message, e.CreatedAt, e.UpdatedAt)

	switch pgErrorCode(err) {
	case "":
	case codeUniqueViolation:
		return exchange.Conflictf("такое предложение обмена уже существует")
	case codeFKViolation:
		return exchange.NotFoundf("участник или вещь обмена не найдены")
	default:
		return fmt.Errorf("ошибка при создании обмена: %w", err)
	}
	return nil
}

func (l *ledger) Get(ctx context.Context, id uuid.UUID) (*models.Exchange, error) {
	e, err := scanExchange(l.q.QueryRow(ctx, `SELECT `+exchangeColumns+` FROM exchanges WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "предложение обмена не найдено")
	}
	return e, nil
}

func (l *ledger) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Exchange, error) {
	e, err := scanExchange(l.q.QueryRow(ctx, `SELECT `+exchangeColumns+` FROM exchanges WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "предложение обмена не найдено")
	}
	return e, nil
}

func (l *ledger) ListForUser(ctx context.Context, userID uuid.UUID, filter exchange.ListFilter) ([]models.Exchange, error) {
	var where []string
	args := []any{userID}

	switch filter.Box {
	case exchange.BoxIncoming:
		where = append(where, "recipient_id = $1")
	case exchange.BoxOutgoing:
		where = append(where, "initiator_id = $1")
	default:
		where = append(where, "(initiator_id = $1 OR recipient_id = $1)")
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	rows, err := l.q.Query(ctx, `
		SELECT `+exchangeColumns+`
		FROM exchanges
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_at DESC, id DESC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении обменов пользователя: %w", err)
	}
	return collectExchanges(rows)
}

func (l *ledger) ListAll(ctx context.Context, status models.ExchangeStatus, page exchange.Page) ([]models.Exchange, int, error) {
	var total int
	err := l.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM exchanges WHERE ($1::text = '' OR status = $1)
	`, string(status)).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка при подсчете обменов: %w", err)
	}

	rows, err := l.q.Query(ctx, `
		SELECT `+exchangeColumns+`
		FROM exchanges
		WHERE ($1::text = '' OR status = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, string(status), page.Limit, page.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка при получении обменов: %w", err)
	}
	list, err := collectExchanges(rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (l *ledger) CountForUser(ctx context.Context, userID uuid.UUID, statuses ...models.ExchangeStatus) (int, error) {
	filter := make([]string, 0, len(statuses))
	for _, st := range statuses {
		filter = append(filter, string(st))
	}

	var count int
	err := l.q.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM exchanges
		WHERE (initiator_id = $1 OR recipient_id = $1)
		  AND (cardinality($2::text[]) = 0 OR status = ANY($2))
	`, userID, filter).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка при подсчете обменов пользователя: %w", err)
	}
	return count, nil
}

func (l *ledger) HasPendingDuplicate(ctx context.Context, e *models.Exchange) (bool, error) {
	var exists bool
	err := l.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM exchanges
			WHERE initiator_id = $1
			  AND recipient_item_id = $2
			  AND initiator_item_id IS NOT DISTINCT FROM $3
			  AND status = 'pending'
		)
	`, e.InitiatorID, e.RecipientItemID, e.InitiatorItemID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка при поиске дубликата обмена: %w", err)
	}
	return exists, nil
}

func (l *ledger) Update(ctx context.Context, id uuid.UUID, expected models.ExchangeStatus, patch exchange.Patch) (*models.Exchange, error) {
	if err := patch.CheckTransition(expected); err != nil {
		return nil, err
	}

	var status, message pgtype.Text
	if patch.Status != nil {
		status = pgtype.Text{String: string(*patch.Status), Valid: true}
	}
	if patch.Message != nil {
		message = pgtype.Text{String: *patch.Message, Valid: true}
	}
	var completedAt pgtype.Timestamptz
	if patch.CompletedAt != nil {
		completedAt = pgtype.Timestamptz{Time: *patch.CompletedAt, Valid: true}
	}

	// Запись меняется, только если её статус всё ещё равен expected
	e, err := scanExchange(l.q.QueryRow(ctx, `
		UPDATE exchanges
		SET status = COALESCE($3, status),
			message = COALESCE($4, message),
			completed_at = COALESCE(completed_at, $5),
			updated_at = $6
		WHERE id = $1 AND status = $2
		RETURNING `+exchangeColumns,
		id, string(expected), status, message, completedAt, l.now()))
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("ошибка при обновлении обмена: %w", err)
	}

	// Отличаем отсутствующую запись от уже обработанной
	if _, getErr := l.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, exchange.Conflictf("предложение обмена уже обработано")
}
