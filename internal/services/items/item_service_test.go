package items

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/rewear-api/internal/db/memory"
	"github.com/rajivgeraev/rewear-api/internal/exchange"
	"github.com/rajivgeraev/rewear-api/internal/models"
	"github.com/rajivgeraev/rewear-api/internal/utils"
)

const cloudinaryUpload = `{
	"asset_id": "b5e6d2b39ba3e0869d67141ba7dba6cf",
	"public_id": "rewear/items/jacket",
	"width": 1200,
	"height": 1600,
	"bytes": 254311,
	"secure_url": "https://res.cloudinary.com/demo/image/upload/v1/rewear/items/jacket.jpg",
	"eager": [{"status": "processing", "secure_url": "https://res.cloudinary.com/demo/image/upload/c_fill,w_300/rewear/items/jacket.jpg"}]
}`

type testEnv struct {
	app   *fiber.App
	store *memory.Store
	jwt   *utils.JWTService
	clock time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	l := logrus.New()
	l.SetOutput(io.Discard)

	store := memory.New(0)
	jwtService := utils.NewJWTService("secret")
	app := fiber.New()
	NewItemService(store, jwtService, logrus.NewEntry(l)).SetupRoutes(app)
	return &testEnv{app: app, store: store, jwt: jwtService, clock: time.Now().UTC().Add(-time.Hour)}
}

func (e *testEnv) user(t *testing.T, role models.Role) (*models.User, string) {
	t.Helper()
	u := &models.User{ID: uuid.New(), Role: role, Location: "Москва"}
	require.NoError(t, e.store.CreateUser(context.Background(), u))
	token, err := e.jwt.GenerateToken(u.ID, role)
	require.NoError(t, err)
	return u, token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req)
	require.NoError(t, err)
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func validItem() map[string]any {
	return map[string]any{
		"title":         "Джинсовая куртка",
		"category":      "outerwear",
		"size":          "M",
		"condition":     "like-new",
		"exchange_type": "points",
		"points_value":  45,
		"images": []map[string]any{
			{"url": "https://res.cloudinary.com/demo/image/upload/a.jpg"},
			{"cloudinary_response": json.RawMessage(cloudinaryUpload), "is_main": true},
		},
	}
}

func TestCreateItem(t *testing.T) {
	env := newTestEnv(t)
	owner, token := env.user(t, models.RoleUser)

	code, out := env.do(t, http.MethodPost, "/api/items", token, validItem())
	require.Equal(t, fiber.StatusCreated, code, out)

	raw := out["item"].(map[string]any)
	itemID := uuid.MustParse(raw["id"].(string))
	item, err := env.store.GetItem(context.Background(), itemID)
	require.NoError(t, err)

	assert.Equal(t, owner.ID, item.OwnerID)
	assert.False(t, item.IsApproved)
	assert.True(t, item.IsAvailable)
	assert.Equal(t, "Москва", item.Location)
	require.Len(t, item.Images, 2)
	assert.False(t, item.Images[0].IsMain)
	assert.True(t, item.Images[1].IsMain)
	assert.Equal(t, "rewear/items/jacket", item.Images[1].PublicID)
	assert.Equal(t, 1600, item.Images[1].Metadata.Height)
	assert.Contains(t, item.Images[1].PreviewURL, "c_fill,w_300")
	assert.Contains(t, item.Images[1].URL, "jacket.jpg")
}

func TestCreateItemValidation(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, models.RoleUser)

	tests := []struct {
		name   string
		mutate func(body map[string]any)
	}{
		{"no title", func(b map[string]any) { b["title"] = "  " }},
		{"bad category", func(b map[string]any) { b["category"] = "hats" }},
		{"bad size", func(b map[string]any) { b["size"] = "XXXL" }},
		{"bad condition", func(b map[string]any) { b["condition"] = "broken" }},
		{"bad exchange type", func(b map[string]any) { b["exchange_type"] = "gift" }},
		{"points without value", func(b map[string]any) { b["points_value"] = 0 }},
		{"negative value", func(b map[string]any) { b["exchange_type"] = "swap"; b["points_value"] = -5 }},
		{"no images", func(b map[string]any) { b["images"] = []map[string]any{} }},
		{"image without url", func(b map[string]any) { b["images"] = []map[string]any{{"public_id": "x"}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := validItem()
			tt.mutate(body)
			code, _ := env.do(t, http.MethodPost, "/api/items", token, body)
			assert.Equal(t, fiber.StatusBadRequest, code)
		})
	}
}

func TestGetItemVisibility(t *testing.T) {
	env := newTestEnv(t)
	_, ownerToken := env.user(t, models.RoleUser)
	_, otherToken := env.user(t, models.RoleUser)
	admin, adminToken := env.user(t, models.RoleAdmin)

	code, out := env.do(t, http.MethodPost, "/api/items", ownerToken, validItem())
	require.Equal(t, fiber.StatusCreated, code)
	itemID := out["item"].(map[string]any)["id"].(string)
	path := "/api/items/" + itemID

	code, _ = env.do(t, http.MethodGet, path, ownerToken, nil)
	assert.Equal(t, fiber.StatusOK, code)
	code, _ = env.do(t, http.MethodGet, path, otherToken, nil)
	assert.Equal(t, fiber.StatusNotFound, code)
	code, _ = env.do(t, http.MethodGet, path, adminToken, nil)
	assert.Equal(t, fiber.StatusOK, code)

	_, err := env.store.ModerateItem(context.Background(), uuid.MustParse(itemID), admin.ID, true)
	require.NoError(t, err)
	code, _ = env.do(t, http.MethodGet, path, otherToken, nil)
	assert.Equal(t, fiber.StatusOK, code)

	code, _ = env.do(t, http.MethodGet, "/api/items/"+uuid.NewString(), otherToken, nil)
	assert.Equal(t, fiber.StatusNotFound, code)
	code, _ = env.do(t, http.MethodGet, "/api/items/nope", otherToken, nil)
	assert.Equal(t, fiber.StatusBadRequest, code)
}

func TestGetMyItems(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, models.RoleUser)
	_, otherToken := env.user(t, models.RoleUser)

	for i := 0; i < 3; i++ {
		code, _ := env.do(t, http.MethodPost, "/api/items", token, validItem())
		require.Equal(t, fiber.StatusCreated, code)
	}
	env.do(t, http.MethodPost, "/api/items", otherToken, validItem())

	code, out := env.do(t, http.MethodGet, "/api/items/my", token, nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, float64(3), out["count"])
}

// approved добавляет одобренную доступную вещь напрямую в хранилище
func (e *testEnv) approved(t *testing.T, owner uuid.UUID, mutate func(item *models.Item)) *models.Item {
	t.Helper()
	item := &models.Item{
		ID:           uuid.New(),
		OwnerID:      owner,
		Title:        "Платье",
		Category:     "dresses",
		Size:         "S",
		Condition:    "good",
		ExchangeType: models.KindSwap,
		IsAvailable:  true,
		IsApproved:   true,
		Tags:         []string{},
	}
	e.clock = e.clock.Add(time.Second)
	item.CreatedAt = e.clock
	if mutate != nil {
		mutate(item)
	}
	require.NoError(t, e.store.CreateItem(context.Background(), item))
	return item
}

func TestBrowseCatalog(t *testing.T) {
	env := newTestEnv(t)
	owner, ownerToken := env.user(t, models.RoleUser)

	for i := 0; i < 14; i++ {
		env.approved(t, owner.ID, nil)
	}
	jacket := env.approved(t, owner.ID, func(item *models.Item) {
		item.Title = "Кожаная куртка"
		item.Category = "outerwear"
		item.ExchangeType = models.KindPoints
		item.PointsValue = 90
	})
	env.approved(t, owner.ID, func(item *models.Item) { item.IsAvailable = false })
	// Вещь на модерации в каталог не попадает
	code, _ := env.do(t, http.MethodPost, "/api/items", ownerToken, validItem())
	require.Equal(t, fiber.StatusCreated, code)

	code, out := env.do(t, http.MethodGet, "/api/items", "", nil)
	require.Equal(t, fiber.StatusOK, code, out)
	assert.Equal(t, float64(15), out["total"])
	assert.Equal(t, float64(2), out["total_pages"])
	assert.Equal(t, float64(1), out["current_page"])
	assert.Len(t, out["items"], 12)
	// Новые первыми
	assert.Equal(t, jacket.ID.String(), out["items"].([]any)[0].(map[string]any)["id"])

	code, out = env.do(t, http.MethodGet, "/api/items?page=2", "", nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Len(t, out["items"], 3)
	assert.Equal(t, float64(2), out["current_page"])

	code, out = env.do(t, http.MethodGet, "/api/items?category=outerwear&exchange_type=points&search="+url.QueryEscape("кожан"), "", nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, float64(1), out["total"])

	code, out = env.do(t, http.MethodGet, "/api/items?size=XL", ownerToken, nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, float64(0), out["total"])
	assert.Empty(t, out["items"])

	// Недействительный токен отклоняется и на публичных маршрутах
	code, _ = env.do(t, http.MethodGet, "/api/items", "garbage", nil)
	assert.Equal(t, fiber.StatusUnauthorized, code)
}

func TestAnonymousAccess(t *testing.T) {
	env := newTestEnv(t)
	owner, _ := env.user(t, models.RoleUser)
	item := env.approved(t, owner.ID, nil)
	hidden := env.approved(t, owner.ID, func(item *models.Item) { item.IsApproved = false })

	code, _ := env.do(t, http.MethodGet, "/api/items/"+item.ID.String(), "", nil)
	assert.Equal(t, fiber.StatusOK, code)
	code, _ = env.do(t, http.MethodGet, "/api/items/"+hidden.ID.String(), "", nil)
	assert.Equal(t, fiber.StatusNotFound, code)

	code, _ = env.do(t, http.MethodPost, "/api/items", "", validItem())
	assert.Equal(t, fiber.StatusUnauthorized, code)
	code, _ = env.do(t, http.MethodGet, "/api/items/my", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, code)
	code, _ = env.do(t, http.MethodPut, "/api/items/"+item.ID.String(), "", map[string]any{"title": "x"})
	assert.Equal(t, fiber.StatusUnauthorized, code)
	code, _ = env.do(t, http.MethodDelete, "/api/items/"+item.ID.String(), "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, code)
}

func TestUpdateItem(t *testing.T) {
	env := newTestEnv(t)
	owner, ownerToken := env.user(t, models.RoleUser)
	_, otherToken := env.user(t, models.RoleUser)
	item := env.approved(t, owner.ID, func(item *models.Item) {
		item.ExchangeType = models.KindPoints
		item.PointsValue = 80
	})
	path := "/api/items/" + item.ID.String()

	code, out := env.do(t, http.MethodPut, path, ownerToken, map[string]any{
		"title":        "Летнее платье",
		"points_value": 120,
		"tags":         []string{"лето"},
	})
	require.Equal(t, fiber.StatusOK, code, out)
	updated, err := env.store.GetItem(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Летнее платье", updated.Title)
	assert.Equal(t, int64(120), updated.PointsValue)
	assert.Equal(t, []string{"лето"}, updated.Tags)
	assert.Equal(t, "S", updated.Size)
	assert.True(t, updated.IsApproved)

	code, _ = env.do(t, http.MethodPut, path, otherToken, map[string]any{"title": "Чужое"})
	assert.Equal(t, fiber.StatusForbidden, code)

	code, _ = env.do(t, http.MethodPut, path, ownerToken, map[string]any{"size": "XXXL"})
	assert.Equal(t, fiber.StatusBadRequest, code)
	code, _ = env.do(t, http.MethodPut, path, ownerToken, map[string]any{"points_value": 0})
	assert.Equal(t, fiber.StatusBadRequest, code)
	code, _ = env.do(t, http.MethodPut, path, ownerToken, map[string]any{"title": "   "})
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodPut, "/api/items/"+uuid.NewString(), ownerToken, map[string]any{"title": "x"})
	assert.Equal(t, fiber.StatusNotFound, code)

	_, err = env.store.Repos().Catalog.SetAvailability(context.Background(), item.ID, false)
	require.NoError(t, err)
	code, _ = env.do(t, http.MethodPut, path, ownerToken, map[string]any{"title": "Снова"})
	assert.Equal(t, fiber.StatusConflict, code)
}

func TestDeleteItem(t *testing.T) {
	env := newTestEnv(t)
	owner, ownerToken := env.user(t, models.RoleUser)
	buyer, _ := env.user(t, models.RoleUser)
	_, otherToken := env.user(t, models.RoleUser)
	spare := env.approved(t, owner.ID, nil)
	traded := env.approved(t, owner.ID, nil)

	code, _ := env.do(t, http.MethodDelete, "/api/items/"+spare.ID.String(), otherToken, nil)
	assert.Equal(t, fiber.StatusForbidden, code)

	code, out := env.do(t, http.MethodDelete, "/api/items/"+spare.ID.String(), ownerToken, nil)
	require.Equal(t, fiber.StatusOK, code, out)
	_, err := env.store.GetItem(context.Background(), spare.ID)
	assert.Error(t, err)

	code, _ = env.do(t, http.MethodDelete, "/api/items/"+spare.ID.String(), ownerToken, nil)
	assert.Equal(t, fiber.StatusNotFound, code)

	// Вещь из журнала обменов остаётся на месте
	core := exchange.NewService(env.store, logrus.NewEntry(logrus.New()))
	_, err = core.Create(context.Background(), exchange.CreateRequest{
		ActorID:         buyer.ID,
		RecipientItemID: traded.ID,
		Kind:            models.KindSwap,
	})
	require.NoError(t, err)
	code, _ = env.do(t, http.MethodDelete, "/api/items/"+traded.ID.String(), ownerToken, nil)
	assert.Equal(t, fiber.StatusConflict, code)
}

func TestPublicUserRoutes(t *testing.T) {
	env := newTestEnv(t)
	owner, _ := env.user(t, models.RoleUser)
	first := env.approved(t, owner.ID, nil)
	second := env.approved(t, owner.ID, nil)
	env.approved(t, owner.ID, func(item *models.Item) { item.IsApproved = false })
	env.approved(t, owner.ID, func(item *models.Item) { item.IsAvailable = false })

	code, out := env.do(t, http.MethodGet, "/api/users/"+owner.ID.String(), "", nil)
	require.Equal(t, fiber.StatusOK, code, out)
	profile := out["user"].(map[string]any)
	assert.Equal(t, owner.ID.String(), profile["id"])
	assert.Equal(t, "Москва", profile["location"])
	assert.NotContains(t, profile, "points")
	assert.NotContains(t, profile, "role")
	assert.Equal(t, float64(2), out["items_count"])

	code, out = env.do(t, http.MethodGet, "/api/users/"+owner.ID.String()+"/items", "", nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, float64(2), out["count"])
	ids := []string{}
	for _, raw := range out["items"].([]any) {
		ids = append(ids, raw.(map[string]any)["id"].(string))
	}
	assert.ElementsMatch(t, []string{first.ID.String(), second.ID.String()}, ids)

	code, _ = env.do(t, http.MethodGet, "/api/users/"+uuid.NewString(), "", nil)
	assert.Equal(t, fiber.StatusNotFound, code)
	code, _ = env.do(t, http.MethodGet, "/api/users/"+uuid.NewString()+"/items", "", nil)
	assert.Equal(t, fiber.StatusNotFound, code)
	code, _ = env.do(t, http.MethodGet, "/api/users/nope", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, code)
}
