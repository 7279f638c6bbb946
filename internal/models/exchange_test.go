package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to ExchangeStatus
		want     bool
	}{
		{StatusPending, StatusAccepted, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusCancelled, true},
		{StatusAccepted, StatusCompleted, true},
		{StatusPending, StatusCompleted, false},
		{StatusPending, StatusPending, false},
		{StatusRejected, StatusPending, false},
		{StatusCancelled, StatusAccepted, false},
		{StatusCompleted, StatusCompleted, false},
		{StatusAccepted, StatusRejected, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestStatusHelpers(t *testing.T) {
	assert.True(t, StatusPending.Valid())
	assert.False(t, ExchangeStatus("accepted-ish").Valid())
	assert.False(t, StatusPending.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, KindSwap.Valid())
	assert.False(t, ExchangeKind("cash").Valid())
}

func TestExchangeItemIDs(t *testing.T) {
	recipientItem := uuid.New()
	e := &Exchange{RecipientItemID: recipientItem}
	assert.Equal(t, []uuid.UUID{recipientItem}, e.ItemIDs())

	initiatorItem := uuid.New()
	e.InitiatorItemID = &initiatorItem
	assert.Equal(t, []uuid.UUID{recipientItem, initiatorItem}, e.ItemIDs())
}

func TestItemSummaryPrefersMainImage(t *testing.T) {
	item := &Item{
		ID: uuid.New(),
		Images: []ItemImage{
			{URL: "https://img/1.jpg"},
			{URL: "https://img/2.jpg", IsMain: true},
		},
	}
	assert.Equal(t, "https://img/2.jpg", item.Summary().ImageURL)
}

func TestExtractPreviewURL(t *testing.T) {
	cr, err := ParseCloudinaryResponse([]byte(`{"public_id":"p1","width":10,"eager":[{"status":"failed","secure_url":"x"},{"status":"completed","secure_url":"https://preview"}]}`))
	assert.NoError(t, err)
	assert.Equal(t, "https://preview", ExtractPreviewURL(cr))
	assert.Equal(t, 10, ExtractMetadata(cr).Width)
}
