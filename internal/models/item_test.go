package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestItemFilterMatches(t *testing.T) {
	owner := uuid.New()
	item := &Item{
		OwnerID:      owner,
		Title:        "Джинсовая куртка",
		Description:  "Почти новая",
		Brand:        "Levi's",
		Category:     "outerwear",
		Size:         "M",
		Condition:    "like-new",
		ExchangeType: KindPoints,
		IsApproved:   true,
		IsAvailable:  true,
	}
	other := uuid.New()

	cases := []struct {
		name   string
		filter ItemFilter
		want   bool
	}{
		{"empty", ItemFilter{}, true},
		{"category", ItemFilter{Category: "outerwear"}, true},
		{"wrong size", ItemFilter{Size: "XL"}, false},
		{"condition", ItemFilter{Condition: "like-new"}, true},
		{"exchange type", ItemFilter{ExchangeType: KindSwap}, false},
		{"search title", ItemFilter{Search: "КУРТКА"}, true},
		{"search brand", ItemFilter{Search: "levi"}, true},
		{"search miss", ItemFilter{Search: "платье"}, false},
		{"owner", ItemFilter{OwnerID: &owner}, true},
		{"other owner", ItemFilter{OwnerID: &other}, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.filter.Matches(item), tc.name)
	}

	pending := *item
	pending.IsApproved = false
	assert.False(t, ItemFilter{}.Matches(&pending))

	exchanged := *item
	exchanged.IsAvailable = false
	assert.False(t, ItemFilter{}.Matches(&exchanged))
}

func TestItemUpdateApply(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	item := &Item{Title: "Платье", Size: "S", PointsValue: 80, Tags: []string{"лето"}}

	title := "  Вечернее платье "
	points := int64(120)
	tags := []string{"вечер"}
	ItemUpdate{Title: &title, PointsValue: &points, Tags: &tags}.Apply(item, now)

	assert.Equal(t, "Вечернее платье", item.Title)
	assert.Equal(t, "S", item.Size)
	assert.Equal(t, int64(120), item.PointsValue)
	assert.Equal(t, []string{"вечер"}, item.Tags)
	assert.Equal(t, now, item.UpdatedAt)

	// Срез тегов копируется
	tags[0] = "изменено"
	assert.Equal(t, "вечер", item.Tags[0])
}

func TestUserFilterMatches(t *testing.T) {
	u := &User{Username: "anna_k", FirstName: "Анна", LastName: "Кузнецова"}
	assert.True(t, UserFilter{}.Matches(u))
	assert.True(t, UserFilter{Search: "ANNA"}.Matches(u))
	assert.True(t, UserFilter{Search: "кузн"}.Matches(u))
	assert.False(t, UserFilter{Search: "пётр"}.Matches(u))
}
