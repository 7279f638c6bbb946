package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePageQuery(t *testing.T) {
	cases := []struct {
		query string
		want  PageQuery
	}{
		{"", PageQuery{Page: 1, Limit: 12}},
		{"?page=3&limit=5", PageQuery{Page: 3, Limit: 5}},
		{"?page=0&limit=-1", PageQuery{Page: 1, Limit: 12}},
		{"?page=x&limit=y", PageQuery{Page: 1, Limit: 12}},
		{"?limit=1000", PageQuery{Page: 1, Limit: maxPageLimit}},
	}
	for _, tc := range cases {
		var got PageQuery
		app := fiber.New()
		app.Get("/", func(c fiber.Ctx) error {
			got = ParsePageQuery(c, 12)
			return c.SendStatus(fiber.StatusNoContent)
		})
		_, err := app.Test(httptest.NewRequest(http.MethodGet, "/"+tc.query, nil))
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, tc.query)
	}
}

func TestPageQueryArithmetic(t *testing.T) {
	p := PageQuery{Page: 3, Limit: 12}
	assert.Equal(t, 24, p.Offset())
	assert.Equal(t, 0, p.TotalPages(0))
	assert.Equal(t, 1, p.TotalPages(12))
	assert.Equal(t, 2, p.TotalPages(13))
}
