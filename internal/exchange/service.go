package exchange

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rajivgeraev/rewear-api/internal/metrics"
	"github.com/rajivgeraev/rewear-api/internal/models"
)

// Decision – ответ получателя на предложение
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Service – машина состояний обменов
type Service struct {
	store Store
	log   *logrus.Entry
	now   func() time.Time
}

// NewService создает новый экземпляр Service
func NewService(store Store, log *logrus.Entry) *Service {
	return &Service{
		store: store,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// CreateRequest – параметры нового предложения обмена
type CreateRequest struct {
	ActorID         uuid.UUID
	RecipientItemID uuid.UUID
	Kind            models.ExchangeKind
	Message         string
	InitiatorItemID *uuid.UUID
}

// Create создает новое предложение обмена в статусе pending
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Exchange, error) {
	if !req.Kind.Valid() {
		return nil, Validationf("недопустимый тип обмена: %q", req.Kind)
	}
	if req.RecipientItemID == uuid.Nil {
		return nil, Validationf("не указана запрашиваемая вещь")
	}
	if req.Kind == models.KindPoints && req.InitiatorItemID != nil {
		return nil, Validationf("обмен за баллы не может содержать встречную вещь")
	}
	if err := ValidateMessage(req.Message); err != nil {
		return nil, err
	}

	var created *models.Exchange
	err := s.store.Atomically(ctx, func(r Repos) error {
		actor, err := activeUser(ctx, r.Accounts, req.ActorID)
		if err != nil {
			return err
		}

		// Доступность и оценка читаются под блокировкой: завершение обмена
		// по этой вещи дождётся фиксации предложения, и наоборот
		item, err := r.Catalog.GetItemForShare(ctx, req.RecipientItemID)
		if err != nil {
			return err
		}
		if item.OwnerID == actor.ID {
			return Validationf("нельзя предложить обмен самому себе")
		}
		if !item.IsAvailable {
			return Validationf("вещь недоступна для обмена")
		}
		if req.Kind == models.KindPoints && !item.AcceptsPoints() {
			return Validationf("владелец не принимает баллы за эту вещь")
		}

		if req.InitiatorItemID != nil {
			counter, err := r.Catalog.GetItemForShare(ctx, *req.InitiatorItemID)
			if err != nil {
				return err
			}
			if counter.OwnerID != actor.ID {
				return Validationf("нельзя предложить для обмена чужую вещь")
			}
			if !counter.IsAvailable {
				return Validationf("предлагаемая вещь недоступна для обмена")
			}
		}

		now := s.now()
		e := &models.Exchange{
			ID:              uuid.New(),
			Kind:            req.Kind,
			InitiatorID:     actor.ID,
			RecipientID:     item.OwnerID,
			InitiatorItemID: req.InitiatorItemID,
			RecipientItemID: item.ID,
			Status:          models.StatusPending,
			Message:         req.Message,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if req.Kind == models.KindPoints {
			// Снимок оценки на момент предложения
			e.PointsAmount = item.PointsValue
		}

		dup, err := r.Ledger.HasPendingDuplicate(ctx, e)
		if err != nil {
			return err
		}
		if dup {
			return Conflictf("такое предложение обмена уже существует")
		}

		if err := r.Ledger.Create(ctx, e); err != nil {
			return err
		}
		created = e
		return nil
	})
	if err != nil {
		s.logFailure(err, "создание обмена", logrus.Fields{"actor_id": req.ActorID, "item_id": req.RecipientItemID})
		return nil, err
	}

	metrics.RecordTransition(string(created.Kind), string(created.Status))
	s.log.WithFields(logrus.Fields{
		"exchange_id": created.ID,
		"actor_id":    created.InitiatorID,
		"kind":        created.Kind,
	}).Info("Создано предложение обмена")
	return created, nil
}

// Respond обрабатывает ответ получателя: принятие с расчётом или отклонение
func (s *Service) Respond(ctx context.Context, actorID, exchangeID uuid.UUID, decision Decision, message *string) (*models.Exchange, error) {
	if message != nil {
		if err := ValidateMessage(*message); err != nil {
			return nil, err
		}
	}

	switch decision {
	case DecisionAccept:
		return s.settle(ctx, actorID, exchangeID, message)
	case DecisionReject:
		return s.transition(ctx, actorID, exchangeID, models.StatusRejected, message)
	default:
		return nil, Validationf("недопустимое решение: %q", decision)
	}
}

// Cancel отменяет предложение; доступно только инициатору
func (s *Service) Cancel(ctx context.Context, actorID, exchangeID uuid.UUID) (*models.Exchange, error) {
	return s.transition(ctx, actorID, exchangeID, models.StatusCancelled, nil)
}

// transition выполняет переход без расчёта (отклонение или отмена)
func (s *Service) transition(ctx context.Context, actorID, exchangeID uuid.UUID, to models.ExchangeStatus, message *string) (*models.Exchange, error) {
	var updated *models.Exchange
	err := s.store.Atomically(ctx, func(r Repos) error {
		if _, err := activeUser(ctx, r.Accounts, actorID); err != nil {
			return err
		}

		e, err := r.Ledger.GetForUpdate(ctx, exchangeID)
		if err != nil {
			return err
		}
		if err := authorize(e, actorID, to); err != nil {
			return err
		}
		if e.Status != models.StatusPending {
			return Conflictf("предложение обмена уже обработано")
		}

		updated, err = r.Ledger.Update(ctx, exchangeID, models.StatusPending, Patch{Status: &to, Message: message})
		return err
	})
	if err != nil {
		s.logFailure(err, "изменение статуса обмена", logrus.Fields{"exchange_id": exchangeID, "actor_id": actorID, "status": to})
		return nil, err
	}

	metrics.RecordTransition(string(updated.Kind), string(updated.Status))
	s.log.WithFields(logrus.Fields{
		"exchange_id": updated.ID,
		"actor_id":    actorID,
		"status":      updated.Status,
	}).Info("Статус обмена изменён")
	return updated, nil
}

// authorize проверяет, что actor может перевести обмен в статус to
func authorize(e *models.Exchange, actorID uuid.UUID, to models.ExchangeStatus) error {
	switch to {
	case models.StatusAccepted, models.StatusRejected:
		if e.RecipientID != actorID {
			return Forbiddenf("только получатель предложения может его принять или отклонить")
		}
	case models.StatusCancelled:
		if e.InitiatorID != actorID {
			return Forbiddenf("только инициатор предложения может его отменить")
		}
	default:
		return Forbiddenf("переход в статус %s недоступен", to)
	}
	return nil
}

// Get возвращает обмен участнику или администратору
func (s *Service) Get(ctx context.Context, actorID, exchangeID uuid.UUID) (*models.Exchange, error) {
	r := s.store.Repos()
	e, err := r.Ledger.Get(ctx, exchangeID)
	if err != nil {
		return nil, err
	}
	if e.IsParticipant(actorID) {
		return e, nil
	}

	actor, err := r.Accounts.GetUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, Forbiddenf("у вас нет доступа к этому обмену")
	}
	return e, nil
}

// ListForUser возвращает обмены пользователя, новые первыми
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]models.Exchange, error) {
	switch filter.Box {
	case "":
		filter.Box = BoxAll
	case BoxAll, BoxIncoming, BoxOutgoing:
	default:
		return nil, Validationf("недопустимый тип выборки: %q", filter.Box)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, Validationf("недопустимый статус: %q", filter.Status)
	}
	return s.store.Repos().Ledger.ListForUser(ctx, userID, filter)
}

// ListAll возвращает все обмены для модерации
func (s *Service) ListAll(ctx context.Context, status models.ExchangeStatus, page Page) ([]models.Exchange, int, Page, error) {
	if status != "" && !status.Valid() {
		return nil, 0, page, Validationf("недопустимый статус: %q", status)
	}
	page = normalizePage(page)
	list, total, err := s.store.Repos().Ledger.ListAll(ctx, status, page)
	return list, total, page, err
}

// Stats собирает сводку для личного кабинета пользователя
func (s *Service) Stats(ctx context.Context, userID uuid.UUID) (*models.ExchangeStats, error) {
	r := s.store.Repos()
	var stats models.ExchangeStats

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := r.Catalog.CountByOwner(gctx, userID)
		stats.TotalItems = n
		return err
	})
	g.Go(func() error {
		n, err := r.Ledger.CountForUser(gctx, userID, models.StatusPending, models.StatusAccepted)
		stats.ActiveExchanges = n
		return err
	})
	g.Go(func() error {
		n, err := r.Ledger.CountForUser(gctx, userID, models.StatusCompleted)
		stats.CompletedExchanges = n
		return err
	})
	g.Go(func() error {
		u, err := r.Accounts.GetUser(gctx, userID)
		if err != nil {
			return err
		}
		stats.Points = u.Points
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &stats, nil
}

func activeUser(ctx context.Context, accounts Accounts, userID uuid.UUID) (*models.User, error) {
	u, err := accounts.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.IsBanned {
		return nil, Forbiddenf("пользователь заблокирован")
	}
	return u, nil
}

func normalizePage(p Page) Page {
	if p.Limit <= 0 {
		p.Limit = defaultPageLimit
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// logFailure пишет в лог неожиданные ошибки, доменные пишутся на уровне debug
func (s *Service) logFailure(err error, op string, fields logrus.Fields) {
	entry := s.log.WithFields(fields).WithError(err)
	switch {
	case errors.Is(err, ErrInconsistentSettlement):
		entry.Error("Несогласованный расчёт: " + op)
	case IsDomain(err):
		entry.Debug("Отказ: " + op)
	default:
		entry.Error("Ошибка: " + op)
	}
}
