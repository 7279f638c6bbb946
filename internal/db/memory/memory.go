// Package memory содержит хранилище в памяти с теми же интерфейсами, что и Postgres.
// Используется в тестах и для локального запуска.
package memory

import (
	"bytes"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/rewear-api/internal/exchange"
	"github.com/rajivgeraev/rewear-api/internal/models"
)

type state struct {
	users     map[uuid.UUID]models.User
	telegram  map[int64]uuid.UUID
	items     map[uuid.UUID]models.Item
	exchanges map[uuid.UUID]models.Exchange
}

func (st *state) clone() *state {
	cp := &state{
		users:     make(map[uuid.UUID]models.User, len(st.users)),
		telegram:  make(map[int64]uuid.UUID, len(st.telegram)),
		items:     make(map[uuid.UUID]models.Item, len(st.items)),
		exchanges: make(map[uuid.UUID]models.Exchange, len(st.exchanges)),
	}
	for k, v := range st.users {
		cp.users[k] = v
	}
	for k, v := range st.telegram {
		cp.telegram[k] = v
	}
	for k, v := range st.items {
		cp.items[k] = v
	}
	for k, v := range st.exchanges {
		cp.exchanges[k] = v
	}
	return cp
}

// accessor даёт доступ к состоянию: под мьютексом вне транзакции или к снимку внутри неё
type accessor func(fn func(st *state) error) error

// Store – потокобезопасное хранилище в памяти
type Store struct {
	mu           sync.Mutex
	st           *state
	signupPoints int64
	now          func() time.Time
}

var _ exchange.Store = (*Store)(nil)

// New создает пустое хранилище; новые пользователи получают signupPoints баллов
func New(signupPoints int64) *Store {
	return &Store{
		st: &state{
			users:     make(map[uuid.UUID]models.User),
			telegram:  make(map[int64]uuid.UUID),
			items:     make(map[uuid.UUID]models.Item),
			exchanges: make(map[uuid.UUID]models.Exchange),
		},
		signupPoints: signupPoints,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) locked(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// Repos возвращает хранилища вне транзакции
func (s *Store) Repos() exchange.Repos {
	return reposFor(s.locked, s.now)
}

// Atomically выполняет fn над снимком состояния и публикует его только при успехе.
// Транзакции выполняются строго последовательно.
func (s *Store) Atomically(ctx context.Context, fn func(r exchange.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	direct := func(f func(st *state) error) error { return f(snapshot) }
	if err := fn(reposFor(direct, s.now)); err != nil {
		return err
	}
	s.st = snapshot
	return nil
}

func reposFor(with accessor, now func() time.Time) exchange.Repos {
	return exchange.Repos{
		Ledger:   &ledger{with: with, now: now},
		Accounts: &accounts{with: with, now: now},
		Catalog:  &catalog{with: with, now: now},
	}
}

// ledger

type ledger struct {
	with accessor
	now  func() time.Time
}

func (l *ledger) Create(_ context.Context, e *models.Exchange) error {
	if err := exchange.ValidateNew(e); err != nil {
		return err
	}
	return l.with(func(st *state) error {
		if _, exists := st.exchanges[e.ID]; exists {
			return exchange.Conflictf("обмен %s уже существует", e.ID)
		}
		st.exchanges[e.ID] = *e
		return nil
	})
}

func (l *ledger) Get(_ context.Context, id uuid.UUID) (*models.Exchange, error) {
	var out models.Exchange
	err := l.with(func(st *state) error {
		e, ok := st.exchanges[id]
		if !ok {
			return exchange.NotFoundf("предложение обмена не найдено")
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (l *ledger) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Exchange, error) {
	return l.Get(ctx, id)
}

func (l *ledger) ListForUser(_ context.Context, userID uuid.UUID, filter exchange.ListFilter) ([]models.Exchange, error) {
	var out []models.Exchange
	err := l.with(func(st *state) error {
		for _, e := range st.exchanges {
			if filter.Matches(&e, userID) {
				out = append(out, e)
			}
		}
		return nil
	})
	sortNewestFirst(out)
	return out, err
}

func (l *ledger) ListAll(_ context.Context, status models.ExchangeStatus, page exchange.Page) ([]models.Exchange, int, error) {
	var all []models.Exchange
	err := l.with(func(st *state) error {
		for _, e := range st.exchanges {
			if status == "" || e.Status == status {
				all = append(all, e)
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sortNewestFirst(all)

	total := len(all)
	if page.Offset >= total {
		return []models.Exchange{}, total, nil
	}
	end := total
	if page.Limit > 0 && page.Offset+page.Limit < total {
		end = page.Offset + page.Limit
	}
	return all[page.Offset:end], total, nil
}

func (l *ledger) CountForUser(_ context.Context, userID uuid.UUID, statuses ...models.ExchangeStatus) (int, error) {
	count := 0
	err := l.with(func(st *state) error {
		for _, e := range st.exchanges {
			if e.IsParticipant(userID) && (len(statuses) == 0 || slices.Contains(statuses, e.Status)) {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (l *ledger) HasPendingDuplicate(_ context.Context, candidate *models.Exchange) (bool, error) {
	found := false
	err := l.with(func(st *state) error {
		for _, e := range st.exchanges {
			if e.Status == models.StatusPending &&
				e.InitiatorID == candidate.InitiatorID &&
				e.RecipientItemID == candidate.RecipientItemID &&
				sameItem(e.InitiatorItemID, candidate.InitiatorItemID) {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (l *ledger) Update(_ context.Context, id uuid.UUID, expected models.ExchangeStatus, patch exchange.Patch) (*models.Exchange, error) {
	if err := patch.CheckTransition(expected); err != nil {
		return nil, err
	}

	var out models.Exchange
	err := l.with(func(st *state) error {
		e, ok := st.exchanges[id]
		if !ok {
			return exchange.NotFoundf("предложение обмена не найдено")
		}
		if e.Status != expected {
			return exchange.Conflictf("предложение обмена уже обработано")
		}
		patch.Apply(&e, l.now())
		st.exchanges[id] = e
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func sameItem(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sortNewestFirst(list []models.Exchange) {
	slices.SortFunc(list, func(a, b models.Exchange) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return bytes.Compare(b.ID[:], a.ID[:])
	})
}

// accounts

type accounts struct {
	with accessor
	now  func() time.Time
}

func (a *accounts) GetUser(_ context.Context, userID uuid.UUID) (*models.User, error) {
	var out models.User
	err := a.with(func(st *state) error {
		u, ok := st.users[userID]
		if !ok {
			return exchange.NotFoundf("пользователь не найден")
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *accounts) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	u, err := a.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return u.Points, nil
}

func (a *accounts) AdjustBalance(_ context.Context, userID uuid.UUID, delta int64) error {
	return a.with(func(st *state) error {
		u, ok := st.users[userID]
		if !ok {
			return exchange.NotFoundf("пользователь не найден")
		}
		u.Points += delta
		u.UpdatedAt = a.now()
		st.users[userID] = u
		return nil
	})
}

// catalog

type catalog struct {
	with accessor
	now  func() time.Time
}

func (c *catalog) GetItem(_ context.Context, itemID uuid.UUID) (*models.Item, error) {
	var out models.Item
	err := c.with(func(st *state) error {
		item, ok := st.items[itemID]
		if !ok {
			return exchange.NotFoundf("вещь не найдена")
		}
		out = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetItemForShare совпадает с GetItem: транзакции хранилища в памяти и так выполняются по очереди
func (c *catalog) GetItemForShare(ctx context.Context, itemID uuid.UUID) (*models.Item, error) {
	return c.GetItem(ctx, itemID)
}

func (c *catalog) SetAvailability(_ context.Context, itemID uuid.UUID, available bool) (bool, error) {
	changed := false
	err := c.with(func(st *state) error {
		item, ok := st.items[itemID]
		if !ok {
			return exchange.NotFoundf("вещь не найдена")
		}
		if item.IsAvailable == available {
			return nil
		}
		item.IsAvailable = available
		item.UpdatedAt = c.now()
		st.items[itemID] = item
		changed = true
		return nil
	})
	return changed, err
}

func (c *catalog) CountByOwner(_ context.Context, ownerID uuid.UUID) (int, error) {
	count := 0
	err := c.with(func(st *state) error {
		for _, item := range st.items {
			if item.OwnerID == ownerID {
				count++
			}
		}
		return nil
	})
	return count, err
}
