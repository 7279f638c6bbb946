package exchange

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rajivgeraev/rewear-api/internal/metrics"
	"github.com/rajivgeraev/rewear-api/internal/models"
)

// settle принимает предложение: переводит баллы, снимает вещи с обмена и завершает обмен
// в одной транзакции. Состояние accepted снаружи транзакции не наблюдается.
func (s *Service) settle(ctx context.Context, actorID, exchangeID uuid.UUID, message *string) (*models.Exchange, error) {
	start := time.Now()
	var settled *models.Exchange

	err := s.store.Atomically(ctx, func(r Repos) error {
		if _, err := activeUser(ctx, r.Accounts, actorID); err != nil {
			return err
		}

		e, err := r.Ledger.GetForUpdate(ctx, exchangeID)
		if err != nil {
			return err
		}
		if err := authorize(e, actorID, models.StatusAccepted); err != nil {
			return err
		}
		// Повторная проверка защищает от двойного принятия
		if e.Status != models.StatusPending {
			return Conflictf("предложение обмена уже обработано")
		}

		if e.Kind == models.KindPoints && e.PointsAmount > 0 {
			if err := transferPoints(ctx, r.Accounts, e); err != nil {
				return err
			}
		}

		for _, itemID := range sortedIDs(e.ItemIDs()) {
			changed, err := r.Catalog.SetAvailability(ctx, itemID, false)
			if err != nil {
				return fmt.Errorf("снятие вещи %s с обмена: %w", itemID, err)
			}
			if !changed {
				s.log.WithFields(logrus.Fields{"exchange_id": e.ID, "item_id": itemID}).
					Warn("Вещь уже снята с обмена другим расчётом")
			}
		}

		accepted := models.StatusAccepted
		if _, err := r.Ledger.Update(ctx, e.ID, models.StatusPending, Patch{Status: &accepted, Message: message}); err != nil {
			return err
		}

		completed := models.StatusCompleted
		completedAt := s.now()
		settled, err = r.Ledger.Update(ctx, e.ID, models.StatusAccepted, Patch{Status: &completed, CompletedAt: &completedAt})
		return err
	})
	if err != nil {
		metrics.RecordSettlementFailure(failureReason(err))
		s.logFailure(err, "расчёт по обмену", logrus.Fields{"exchange_id": exchangeID, "actor_id": actorID})
		return nil, err
	}

	metrics.ObserveSettlement(start)
	metrics.RecordTransition(string(settled.Kind), string(models.StatusAccepted))
	metrics.RecordTransition(string(settled.Kind), string(settled.Status))
	metrics.AddPointsTransferred(settled.PointsAmount)
	s.log.WithFields(logrus.Fields{
		"exchange_id": settled.ID,
		"actor_id":    actorID,
		"kind":        settled.Kind,
		"points":      settled.PointsAmount,
	}).Info("Обмен завершён")
	return settled, nil
}

// transferPoints списывает баллы у инициатора и зачисляет получателю.
// Балансы читаются по текущему состоянию, а не по снимку на момент предложения.
func transferPoints(ctx context.Context, accounts Accounts, e *models.Exchange) error {
	// Блокируем строки в фиксированном порядке, чтобы встречные расчёты не взаимоблокировались
	balances := make(map[uuid.UUID]int64, 2)
	for _, userID := range sortedIDs([]uuid.UUID{e.InitiatorID, e.RecipientID}) {
		balance, err := accounts.GetBalance(ctx, userID)
		if err != nil {
			return err
		}
		balances[userID] = balance
	}

	if balances[e.InitiatorID] < e.PointsAmount {
		return &Error{
			Kind:    ErrInsufficientFunds,
			Message: fmt.Sprintf("у инициатора недостаточно баллов: %d из %d", balances[e.InitiatorID], e.PointsAmount),
		}
	}

	if err := accounts.AdjustBalance(ctx, e.InitiatorID, -e.PointsAmount); err != nil {
		return fmt.Errorf("списание баллов: %w", err)
	}
	if err := accounts.AdjustBalance(ctx, e.RecipientID, e.PointsAmount); err != nil {
		return fmt.Errorf("%w: зачисление после списания: %w", ErrInconsistentSettlement, err)
	}
	return nil
}

func sortedIDs(ids []uuid.UUID) []uuid.UUID {
	sorted := slices.Clone(ids)
	slices.SortFunc(sorted, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})
	return slices.Compact(sorted)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrInconsistentSettlement):
		return "inconsistent"
	default:
		return "storage"
	}
}
