package utils

import (
	"strconv"

	"github.com/gofiber/fiber/v3"
)

const maxPageLimit = 100

// PageQuery – номер страницы (с единицы) и её размер из параметров page и limit
type PageQuery struct {
	Page  int
	Limit int
}

// ParsePageQuery читает page и limit; некорректные значения заменяются значениями по умолчанию
func ParsePageQuery(c fiber.Ctx, defaultLimit int) PageQuery {
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return PageQuery{Page: page, Limit: limit}
}

// Offset возвращает число записей, пропускаемых до начала страницы
func (p PageQuery) Offset() int {
	return (p.Page - 1) * p.Limit
}

// TotalPages возвращает число страниц для total записей
func (p PageQuery) TotalPages(total int) int {
	return (total + p.Limit - 1) / p.Limit
}
