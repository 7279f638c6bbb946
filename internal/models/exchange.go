package models

import (
	"time"

	"github.com/google/uuid"
)

// ExchangeKind определяет способ обмена
type ExchangeKind string

const (
	KindSwap   ExchangeKind = "swap"
	KindPoints ExchangeKind = "points"
)

// Valid сообщает, является ли значение допустимым типом обмена
func (k ExchangeKind) Valid() bool {
	return k == KindSwap || k == KindPoints
}

// ExchangeStatus определяет состояние предложения обмена
type ExchangeStatus string

const (
	StatusPending   ExchangeStatus = "pending"
	StatusAccepted  ExchangeStatus = "accepted"
	StatusRejected  ExchangeStatus = "rejected"
	StatusCompleted ExchangeStatus = "completed"
	StatusCancelled ExchangeStatus = "cancelled"
)

// Valid сообщает, является ли значение известным статусом
func (s ExchangeStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal сообщает, что из статуса больше нельзя выйти через respond/cancel
func (s ExchangeStatus) Terminal() bool {
	return s != StatusPending
}

// transitions описывает допустимые переходы статусов.
// accepted существует только внутри транзакции расчёта и сразу переходит в completed.
var transitions = map[ExchangeStatus][]ExchangeStatus{
	StatusPending:   {StatusAccepted, StatusRejected, StatusCancelled},
	StatusAccepted:  {StatusCompleted},
	StatusRejected:  nil,
	StatusCompleted: nil,
	StatusCancelled: nil,
}

// CanTransition проверяет, разрешён ли переход from -> to
func CanTransition(from, to ExchangeStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// MaxMessageLength ограничивает длину комментария к обмену
const MaxMessageLength = 500

// Exchange представляет предложение обмена (запись журнала обменов)
type Exchange struct {
	ID              uuid.UUID      `json:"id"`
	Kind            ExchangeKind   `json:"kind"`
	InitiatorID     uuid.UUID      `json:"initiator_id"`
	RecipientID     uuid.UUID      `json:"recipient_id"`
	InitiatorItemID *uuid.UUID     `json:"initiator_item_id,omitempty"`
	RecipientItemID uuid.UUID      `json:"recipient_item_id"`
	PointsAmount    int64          `json:"points_amount"`
	Status          ExchangeStatus `json:"status"`
	Message         string         `json:"message"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
}

// IsParticipant сообщает, участвует ли пользователь в обмене
func (e *Exchange) IsParticipant(userID uuid.UUID) bool {
	return e.InitiatorID == userID || e.RecipientID == userID
}

// ItemIDs возвращает все вещи, затронутые обменом
func (e *Exchange) ItemIDs() []uuid.UUID {
	ids := []uuid.UUID{e.RecipientItemID}
	if e.InitiatorItemID != nil {
		ids = append(ids, *e.InitiatorItemID)
	}
	return ids
}

// ExchangeView – запись журнала, дополненная сводками пользователей и вещей для отображения
type ExchangeView struct {
	Exchange

	Initiator     *UserSummary `json:"initiator,omitempty"`
	Recipient     *UserSummary `json:"recipient,omitempty"`
	InitiatorItem *ItemSummary `json:"initiator_item,omitempty"`
	RecipientItem *ItemSummary `json:"recipient_item,omitempty"`
}

// ExchangeStats – сводка для личного кабинета
type ExchangeStats struct {
	TotalItems         int   `json:"total_items"`
	ActiveExchanges    int   `json:"active_exchanges"`
	CompletedExchanges int   `json:"completed_exchanges"`
	Points             int64 `json:"points"`
}

// PlatformStats – сводка по платформе для администратора
type PlatformStats struct {
	TotalUsers         int   `json:"total_users"`
	TotalItems         int   `json:"total_items"`
	ApprovedItems      int   `json:"approved_items"`
	PendingItems       int   `json:"pending_items"`
	TotalExchanges     int   `json:"total_exchanges"`
	CompletedExchanges int   `json:"completed_exchanges"`
	TotalPoints        int64 `json:"total_points"`
}
