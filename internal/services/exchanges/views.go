package exchanges

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/rewear-api/internal/exchange"
	"github.com/rajivgeraev/rewear-api/internal/models"
	"github.com/rajivgeraev/rewear-api/internal/utils"
)

func (s *ExchangeService) fail(c fiber.Ctx, err error, op string) error {
	return utils.SendError(c, s.log, err, op)
}

func (s *ExchangeService) composeOne(ctx context.Context, e *models.Exchange) (*models.ExchangeView, error) {
	views, err := s.compose(ctx, []models.Exchange{*e})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// compose дополняет записи журнала сводками пользователей и вещей.
// Сводки пользователей берутся из кэша, вещи читаются всегда заново: их доступность меняется.
func (s *ExchangeService) compose(ctx context.Context, list []models.Exchange) ([]models.ExchangeView, error) {
	views := make([]models.ExchangeView, len(list))
	if len(list) == 0 {
		return views, nil
	}

	var userIDs []uuid.UUID
	var itemIDs []uuid.UUID
	seenUsers := map[uuid.UUID]bool{}
	seenItems := map[uuid.UUID]bool{}
	for _, e := range list {
		for _, id := range []uuid.UUID{e.InitiatorID, e.RecipientID} {
			if !seenUsers[id] {
				seenUsers[id] = true
				userIDs = append(userIDs, id)
			}
		}
		for _, id := range e.ItemIDs() {
			if !seenItems[id] {
				seenItems[id] = true
				itemIDs = append(itemIDs, id)
			}
		}
	}

	users, err := s.userSummaries(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	items, err := s.itemSummaries(ctx, itemIDs)
	if err != nil {
		return nil, err
	}

	for i, e := range list {
		views[i] = models.ExchangeView{
			Exchange:      e,
			Initiator:     users[e.InitiatorID],
			Recipient:     users[e.RecipientID],
			RecipientItem: items[e.RecipientItemID],
		}
		if e.InitiatorItemID != nil {
			views[i].InitiatorItem = items[*e.InitiatorItemID]
		}
	}
	return views, nil
}

func (s *ExchangeService) userSummaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.UserSummary, error) {
	found, err := s.summaries.GetUserSummaries(ctx, ids)
	if err != nil {
		// Кэш необязателен: при сбое читаем всё из хранилища
		s.log.WithError(err).Warn("Кэш сводок пользователей недоступен")
		found = map[uuid.UUID]*models.UserSummary{}
	}

	accounts := s.store.Repos().Accounts
	var fresh []*models.UserSummary
	for _, id := range ids {
		if _, ok := found[id]; ok {
			continue
		}
		u, err := accounts.GetUser(ctx, id)
		if err != nil {
			if errors.Is(err, exchange.ErrNotFound) {
				continue
			}
			return nil, err
		}
		summary := u.Summary()
		found[id] = summary
		fresh = append(fresh, summary)
	}

	if err := s.summaries.SetUserSummaries(ctx, fresh); err != nil {
		s.log.WithError(err).Warn("Не удалось сохранить сводки пользователей в кэш")
	}
	return found, nil
}

func (s *ExchangeService) itemSummaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.ItemSummary, error) {
	catalog := s.store.Repos().Catalog
	out := make(map[uuid.UUID]*models.ItemSummary, len(ids))
	for _, id := range ids {
		item, err := catalog.GetItem(ctx, id)
		if err != nil {
			if errors.Is(err, exchange.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out[id] = item.Summary()
	}
	return out, nil
}
