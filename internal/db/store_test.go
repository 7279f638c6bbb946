package db

import (
	"context"
	"database/sql"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/rewear-api/internal/db/migrations"
	"github.com/rajivgeraev/rewear-api/internal/exchange"
	"github.com/rajivgeraev/rewear-api/internal/models"
)

// newTestStore подключается к TEST_DATABASE_URL, применяет миграции и очищает таблицы
func newTestStore(t *testing.T) (*Store, context.Context) {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL не задан")
	}
	ctx := context.Background()

	sqlDB, err := sql.Open("postgres", url)
	require.NoError(t, err)
	defer sqlDB.Close()
	_, err = migrations.Apply(ctx, sqlDB)
	require.NoError(t, err)
	_, err = sqlDB.ExecContext(ctx, `TRUNCATE exchanges, items, user_sessions, telegram_users, users CASCADE`)
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return NewStore(pool, 100), ctx
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func createUser(t *testing.T, s *Store, ctx context.Context, points int64) *models.User {
	t.Helper()
	u := &models.User{ID: uuid.New(), Username: "u" + uuid.NewString()[:8], Points: points}
	require.NoError(t, s.CreateUser(ctx, u))
	return u
}

func createItem(t *testing.T, s *Store, ctx context.Context, owner uuid.UUID, kind models.ExchangeKind, value int64) *models.Item {
	t.Helper()
	item := &models.Item{
		OwnerID:      owner,
		Title:        "Свитер",
		Category:     "outerwear",
		Size:         "M",
		Condition:    "good",
		ExchangeType: kind,
		PointsValue:  value,
		IsAvailable:  true,
		IsApproved:   true,
		Images:       []models.ItemImage{{URL: "https://res.cloudinary.com/demo/a.jpg", PublicID: "a", IsMain: true}},
	}
	require.NoError(t, s.CreateItem(ctx, item))
	return item
}

func TestUpsertTelegramUser(t *testing.T) {
	s, ctx := newTestStore(t)
	profile := models.TelegramProfile{TelegramID: 777, Username: "anna", FirstName: "Анна"}

	first, created, err := s.UpsertTelegramUser(ctx, profile)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(100), first.Points)
	assert.Equal(t, models.RoleUser, first.Role)

	profile.Username = "anna_new"
	second, created, err := s.UpsertTelegramUser(ctx, profile)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(100), second.Points)
}

func TestLedgerCompareAndSwap(t *testing.T) {
	s, ctx := newTestStore(t)
	a := createUser(t, s, ctx, 0)
	b := createUser(t, s, ctx, 0)
	item := createItem(t, s, ctx, b.ID, models.KindSwap, 0)
	counter := createItem(t, s, ctx, a.ID, models.KindSwap, 0)

	now := s.now()
	e := &models.Exchange{
		ID: uuid.New(), Kind: models.KindSwap, InitiatorID: a.ID, RecipientID: b.ID,
		InitiatorItemID: &counter.ID, RecipientItemID: item.ID, Status: models.StatusPending,
		CreatedAt: now, UpdatedAt: now,
	}
	ledger := s.Repos().Ledger
	require.NoError(t, ledger.Create(ctx, e))

	// Второе открытое предложение на ту же пару вещей запрещено индексом
	dup := *e
	dup.ID = uuid.New()
	assert.ErrorIs(t, ledger.Create(ctx, &dup), exchange.ErrConflict)

	rejected := models.StatusRejected
	updated, err := ledger.Update(ctx, e.ID, models.StatusPending, exchange.Patch{Status: &rejected})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, updated.Status)
	require.NotNil(t, updated.InitiatorItemID)
	assert.Equal(t, counter.ID, *updated.InitiatorItemID)

	cancelled := models.StatusCancelled
	_, err = ledger.Update(ctx, e.ID, models.StatusPending, exchange.Patch{Status: &cancelled})
	assert.ErrorIs(t, err, exchange.ErrConflict)

	_, err = ledger.Update(ctx, uuid.New(), models.StatusPending, exchange.Patch{Status: &cancelled})
	assert.ErrorIs(t, err, exchange.ErrNotFound)
}

func TestSetAvailabilityIsIdempotent(t *testing.T) {
	s, ctx := newTestStore(t)
	owner := createUser(t, s, ctx, 0)
	item := createItem(t, s, ctx, owner.ID, models.KindSwap, 0)
	catalog := s.Repos().Catalog

	changed, err := catalog.SetAvailability(ctx, item.ID, false)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = catalog.SetAvailability(ctx, item.ID, false)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = catalog.SetAvailability(ctx, uuid.New(), false)
	assert.ErrorIs(t, err, exchange.ErrNotFound)
}

func TestConcurrentAcceptSettlesOnce(t *testing.T) {
	s, ctx := newTestStore(t)
	svc := exchange.NewService(s, testLogger())

	buyer := createUser(t, s, ctx, 100)
	seller := createUser(t, s, ctx, 0)
	item := createItem(t, s, ctx, seller.ID, models.KindPoints, 60)

	e, err := svc.Create(ctx, exchange.CreateRequest{ActorID: buyer.ID, RecipientItemID: item.ID, Kind: models.KindPoints})
	require.NoError(t, err)

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		conflict int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Respond(ctx, seller.ID, e.ID, exchange.DecisionAccept, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case assert.ErrorIs(t, err, exchange.ErrConflict):
				conflict++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, conflict)

	b, err := s.GetUser(ctx, buyer.ID)
	require.NoError(t, err)
	sl, err := s.GetUser(ctx, seller.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(40), b.Points)
	assert.Equal(t, int64(60), sl.Points)

	stats, err := s.PlatformStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), stats.TotalPoints)
	assert.Equal(t, 1, stats.CompletedExchanges)
}

func TestBalanceCannotGoNegative(t *testing.T) {
	s, ctx := newTestStore(t)
	u := createUser(t, s, ctx, 10)

	err := s.Repos().Accounts.AdjustBalance(ctx, u.ID, -11)
	assert.ErrorIs(t, err, exchange.ErrInsufficientFunds)

	err = s.Repos().Accounts.AdjustBalance(ctx, uuid.New(), 5)
	assert.ErrorIs(t, err, exchange.ErrNotFound)
}

func TestCreateWaitsForConcurrentSettlement(t *testing.T) {
	s, ctx := newTestStore(t)
	svc := exchange.NewService(s, testLogger())

	buyer := createUser(t, s, ctx, 100)
	seller := createUser(t, s, ctx, 0)
	item := createItem(t, s, ctx, seller.ID, models.KindPoints, 60)

	// Незавершённая транзакция, снимающая вещь с обмена
	tx, err := s.pool.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)
	changed, err := (&catalog{q: tx, now: s.now}).SetAvailability(ctx, item.ID, false)
	require.NoError(t, err)
	require.True(t, changed)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Create(ctx, exchange.CreateRequest{ActorID: buyer.ID, RecipientItemID: item.ID, Kind: models.KindPoints})
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("создание предложения не дождалось блокировки: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, tx.Commit(ctx))
	err = <-done
	assert.ErrorIs(t, err, exchange.ErrValidation)
}

func TestListItemsFiltersAndPaginates(t *testing.T) {
	s, ctx := newTestStore(t)
	owner := createUser(t, s, ctx, 0)
	for i := 0; i < 3; i++ {
		createItem(t, s, ctx, owner.ID, models.KindPoints, 10)
	}
	swap := createItem(t, s, ctx, owner.ID, models.KindSwap, 0)
	pending := createItem(t, s, ctx, owner.ID, models.KindSwap, 0)
	_, err := s.ModerateItem(ctx, pending.ID, owner.ID, false)
	require.NoError(t, err)

	list, total, err := s.ListItems(ctx, models.ItemFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, list, 2)

	list, total, err = s.ListItems(ctx, models.ItemFilter{ExchangeType: models.KindSwap})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, swap.ID, list[0].ID)

	// Спецсимволы LIKE ищутся буквально
	_, total, err = s.ListItems(ctx, models.ItemFilter{Search: "%"})
	require.NoError(t, err)
	assert.Zero(t, total)

	_, total, err = s.ListItems(ctx, models.ItemFilter{Search: "Свит"})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
}

func TestDeleteItemReferencedByExchange(t *testing.T) {
	s, ctx := newTestStore(t)
	svc := exchange.NewService(s, testLogger())
	buyer := createUser(t, s, ctx, 100)
	seller := createUser(t, s, ctx, 0)
	traded := createItem(t, s, ctx, seller.ID, models.KindPoints, 10)
	spare := createItem(t, s, ctx, seller.ID, models.KindPoints, 10)

	_, err := svc.Create(ctx, exchange.CreateRequest{ActorID: buyer.ID, RecipientItemID: traded.ID, Kind: models.KindPoints})
	require.NoError(t, err)

	assert.ErrorIs(t, s.DeleteItem(ctx, traded.ID), exchange.ErrConflict)
	require.NoError(t, s.DeleteItem(ctx, spare.ID))
	assert.ErrorIs(t, s.DeleteItem(ctx, spare.ID), exchange.ErrNotFound)
}

func TestUpdateItemAndListUsers(t *testing.T) {
	s, ctx := newTestStore(t)
	owner := createUser(t, s, ctx, 0)
	item := createItem(t, s, ctx, owner.ID, models.KindPoints, 10)

	points := int64(250)
	updated, err := s.UpdateItem(ctx, item.ID, models.ItemUpdate{PointsValue: &points})
	require.NoError(t, err)
	assert.Equal(t, int64(250), updated.PointsValue)
	assert.Equal(t, item.Title, updated.Title)

	_, err = s.UpdateItem(ctx, uuid.New(), models.ItemUpdate{PointsValue: &points})
	assert.ErrorIs(t, err, exchange.ErrNotFound)

	list, total, err := s.ListUsers(ctx, models.UserFilter{Search: owner.Username[1:], Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, owner.ID, list[0].ID)
}
