package exchange

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/rewear-api/internal/models"
)

// Accounts – хранилище пользователей и их баланса баллов
type Accounts interface {
	GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
	// GetBalance внутри транзакции блокирует строку пользователя до её завершения.
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)
	// AdjustBalance не проверяет уход в минус: это предусловие вызывающей стороны.
	AdjustBalance(ctx context.Context, userID uuid.UUID, delta int64) error
}

// Catalog – хранилище вещей
type Catalog interface {
	GetItem(ctx context.Context, itemID uuid.UUID) (*models.Item, error)
	// GetItemForShare внутри транзакции запрещает менять вещь до её завершения,
	// не мешая другим читателям.
	GetItemForShare(ctx context.Context, itemID uuid.UUID) (*models.Item, error)
	// SetAvailability идемпотентна; changed=false, если флаг уже имел нужное значение.
	SetAvailability(ctx context.Context, itemID uuid.UUID, available bool) (changed bool, err error)
	CountByOwner(ctx context.Context, ownerID uuid.UUID) (int, error)
}

// Box определяет, какие обмены пользователя возвращать
type Box string

const (
	BoxAll      Box = "all"
	BoxIncoming Box = "incoming"
	BoxOutgoing Box = "outgoing"
)

// ListFilter – фильтр выборки обменов
type ListFilter struct {
	Box    Box
	Status models.ExchangeStatus // пустое значение означает любой статус
}

// Matches проверяет запись на соответствие фильтру для участника userID
func (f ListFilter) Matches(e *models.Exchange, userID uuid.UUID) bool {
	switch f.Box {
	case BoxIncoming:
		if e.RecipientID != userID {
			return false
		}
	case BoxOutgoing:
		if e.InitiatorID != userID {
			return false
		}
	default:
		if !e.IsParticipant(userID) {
			return false
		}
	}
	return f.Status == "" || e.Status == f.Status
}

// Page – параметры пагинации
type Page struct {
	Limit  int
	Offset int
}

// Patch – изменение записи журнала. nil-поля не меняются.
type Patch struct {
	Status      *models.ExchangeStatus
	Message     *string
	CompletedAt *time.Time
}

// Apply применяет изменение к записи и всегда обновляет UpdatedAt
func (p Patch) Apply(e *models.Exchange, now time.Time) {
	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.Message != nil {
		e.Message = *p.Message
	}
	if p.CompletedAt != nil && e.CompletedAt == nil {
		completedAt := *p.CompletedAt
		e.CompletedAt = &completedAt
	}
	e.UpdatedAt = now
}

// CheckTransition проверяет, что изменение допустимо для записи в статусе expected
func (p Patch) CheckTransition(expected models.ExchangeStatus) error {
	if p.Status != nil && !models.CanTransition(expected, *p.Status) {
		return Conflictf("переход %s -> %s недопустим", expected, *p.Status)
	}
	return nil
}

// Ledger – журнал предложений обмена
type Ledger interface {
	// Create сохраняет новую запись в статусе pending.
	Create(ctx context.Context, e *models.Exchange) error
	Get(ctx context.Context, id uuid.UUID) (*models.Exchange, error)
	// GetForUpdate внутри транзакции блокирует запись до её завершения.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Exchange, error)
	// ListForUser возвращает записи, где пользователь инициатор или получатель, новые первыми.
	ListForUser(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]models.Exchange, error)
	ListAll(ctx context.Context, status models.ExchangeStatus, page Page) ([]models.Exchange, int, error)
	CountForUser(ctx context.Context, userID uuid.UUID, statuses ...models.ExchangeStatus) (int, error)
	HasPendingDuplicate(ctx context.Context, e *models.Exchange) (bool, error)
	// Update выполняет compare-and-swap по статусу: запись меняется, только если её статус равен expected.
	// UpdatedAt обновляется всегда.
	Update(ctx context.Context, id uuid.UUID, expected models.ExchangeStatus, patch Patch) (*models.Exchange, error)
}

// Repos объединяет хранилища, работающие в одной транзакции
type Repos struct {
	Ledger   Ledger
	Accounts Accounts
	Catalog  Catalog
}

// Store даёт доступ к хранилищам и транзакционной границе
type Store interface {
	Repos() Repos
	// Atomically выполняет fn в одной транзакции: при ошибке ни одно изменение не сохраняется.
	Atomically(ctx context.Context, fn func(r Repos) error) error
}
