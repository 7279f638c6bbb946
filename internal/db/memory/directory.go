package memory

import (
	"bytes"
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/rajivgeraev/rewear-api/internal/exchange"
	"github.com/rajivgeraev/rewear-api/internal/models"
)

// CreateUser добавляет пользователя как есть
func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	return s.locked(func(st *state) error {
		if _, exists := st.users[u.ID]; exists {
			return exchange.Conflictf("пользователь %s уже существует", u.ID)
		}
		if u.Role == "" {
			u.Role = models.RoleUser
		}
		now := s.now()
		if u.CreatedAt.IsZero() {
			u.CreatedAt = now
		}
		u.UpdatedAt = now
		st.users[u.ID] = *u
		return nil
	})
}

// GetUser возвращает пользователя по ID
func (s *Store) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.Repos().Accounts.GetUser(ctx, userID)
}

// UpsertTelegramUser находит пользователя по Telegram ID или регистрирует нового
// с приветственными баллами. Возвращает true, если пользователь создан.
func (s *Store) UpsertTelegramUser(_ context.Context, p models.TelegramProfile) (*models.User, bool, error) {
	var out models.User
	created := false
	err := s.locked(func(st *state) error {
		now := s.now()
		if userID, ok := st.telegram[p.TelegramID]; ok {
			u := st.users[userID]
			u.LastLoginAt = now
			st.users[userID] = u
			out = u
			return nil
		}

		u := models.User{
			ID:          uuid.New(),
			Username:    p.Username,
			FirstName:   p.FirstName,
			LastName:    p.LastName,
			AvatarURL:   p.PhotoURL,
			Points:      s.signupPoints,
			Role:        models.RoleUser,
			CreatedAt:   now,
			UpdatedAt:   now,
			LastLoginAt: now,
		}
		st.users[u.ID] = u
		st.telegram[p.TelegramID] = u.ID
		out = u
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &out, created, nil
}

// SetUserBanned блокирует или разблокирует пользователя
func (s *Store) SetUserBanned(_ context.Context, userID uuid.UUID, banned bool) (*models.User, error) {
	return s.updateUser(userID, func(u *models.User) { u.IsBanned = banned })
}

// SetUserRole меняет роль пользователя
func (s *Store) SetUserRole(_ context.Context, userID uuid.UUID, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, exchange.Validationf("недопустимая роль: %q", role)
	}
	return s.updateUser(userID, func(u *models.User) { u.Role = role })
}

// ListUsers возвращает страницу пользователей, новые первыми, и общее число подходящих
func (s *Store) ListUsers(_ context.Context, filter models.UserFilter) ([]models.User, int, error) {
	out := []models.User{}
	err := s.locked(func(st *state) error {
		for _, u := range st.users {
			if filter.Matches(&u) {
				out = append(out, u)
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	slices.SortFunc(out, func(a, b models.User) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return bytes.Compare(b.ID[:], a.ID[:])
	})
	return paginate(out, filter.Limit, filter.Offset), len(out), nil
}

func (s *Store) updateUser(userID uuid.UUID, mutate func(u *models.User)) (*models.User, error) {
	var out models.User
	err := s.locked(func(st *state) error {
		u, ok := st.users[userID]
		if !ok {
			return exchange.NotFoundf("пользователь не найден")
		}
		mutate(&u)
		u.UpdatedAt = s.now()
		st.users[userID] = u
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateItem добавляет вещь в каталог
func (s *Store) CreateItem(_ context.Context, item *models.Item) error {
	return s.locked(func(st *state) error {
		if _, ok := st.users[item.OwnerID]; !ok {
			return exchange.NotFoundf("владелец вещи не найден")
		}
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		if _, exists := st.items[item.ID]; exists {
			return exchange.Conflictf("вещь %s уже существует", item.ID)
		}
		now := s.now()
		if item.CreatedAt.IsZero() {
			item.CreatedAt = now
		}
		item.UpdatedAt = now
		st.items[item.ID] = *item
		return nil
	})
}

// GetItem возвращает вещь по ID
func (s *Store) GetItem(ctx context.Context, itemID uuid.UUID) (*models.Item, error) {
	return s.Repos().Catalog.GetItem(ctx, itemID)
}

// ListItemsByOwner возвращает вещи пользователя, новые первыми
func (s *Store) ListItemsByOwner(_ context.Context, ownerID uuid.UUID) ([]models.Item, error) {
	return s.listItems(func(item *models.Item) bool { return item.OwnerID == ownerID })
}

// ListPendingItems возвращает вещи, ещё не рассмотренные модератором
func (s *Store) ListPendingItems(_ context.Context) ([]models.Item, error) {
	return s.listItems(func(item *models.Item) bool { return !item.IsApproved && item.ApprovedAt == nil })
}

func (s *Store) listItems(keep func(item *models.Item) bool) ([]models.Item, error) {
	out := []models.Item{}
	err := s.locked(func(st *state) error {
		for _, item := range st.items {
			if keep(&item) {
				out = append(out, item)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b models.Item) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return bytes.Compare(b.ID[:], a.ID[:])
	})
	return out, err
}

// ListItems возвращает страницу публичного каталога и общее число подходящих вещей
func (s *Store) ListItems(_ context.Context, filter models.ItemFilter) ([]models.Item, int, error) {
	all, err := s.listItems(filter.Matches)
	if err != nil {
		return nil, 0, err
	}
	return paginate(all, filter.Limit, filter.Offset), len(all), nil
}

// UpdateItem применяет изменение владельца к вещи
func (s *Store) UpdateItem(_ context.Context, itemID uuid.UUID, update models.ItemUpdate) (*models.Item, error) {
	var out models.Item
	err := s.locked(func(st *state) error {
		item, ok := st.items[itemID]
		if !ok {
			return exchange.NotFoundf("вещь не найдена")
		}
		update.Apply(&item, s.now())
		st.items[itemID] = item
		out = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteItem удаляет вещь. Вещь, упомянутая в журнале обменов, не удаляется.
func (s *Store) DeleteItem(_ context.Context, itemID uuid.UUID) error {
	return s.locked(func(st *state) error {
		if _, ok := st.items[itemID]; !ok {
			return exchange.NotFoundf("вещь не найдена")
		}
		for _, e := range st.exchanges {
			for _, id := range e.ItemIDs() {
				if id == itemID {
					return exchange.Conflictf("вещь участвует в обменах и не может быть удалена")
				}
			}
		}
		delete(st.items, itemID)
		return nil
	})
}

// ModerateItem фиксирует решение модератора по вещи
func (s *Store) ModerateItem(_ context.Context, itemID, adminID uuid.UUID, approved bool) (*models.Item, error) {
	var out models.Item
	err := s.locked(func(st *state) error {
		item, ok := st.items[itemID]
		if !ok {
			return exchange.NotFoundf("вещь не найдена")
		}
		now := s.now()
		item.IsApproved = approved
		item.ApprovedBy = &adminID
		item.ApprovedAt = &now
		item.UpdatedAt = now
		st.items[itemID] = item
		out = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// PlatformStats собирает сводку по платформе
func (s *Store) PlatformStats(_ context.Context) (*models.PlatformStats, error) {
	var stats models.PlatformStats
	err := s.locked(func(st *state) error {
		stats.TotalUsers = len(st.users)
		for _, u := range st.users {
			stats.TotalPoints += u.Points
		}
		stats.TotalItems = len(st.items)
		for _, item := range st.items {
			if item.IsApproved {
				stats.ApprovedItems++
			} else {
				stats.PendingItems++
			}
		}
		stats.TotalExchanges = len(st.exchanges)
		for _, e := range st.exchanges {
			if e.Status == models.StatusCompleted {
				stats.CompletedExchanges++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// TotalPoints возвращает сумму балансов всех пользователей
func (s *Store) TotalPoints() int64 {
	var total int64
	_ = s.locked(func(st *state) error {
		for _, u := range st.users {
			total += u.Points
		}
		return nil
	})
	return total
}

func paginate[T any](list []T, limit, offset int) []T {
	if offset >= len(list) {
		return []T{}
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}
