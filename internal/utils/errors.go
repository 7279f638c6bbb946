package utils

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/rajivgeraev/rewear-api/internal/exchange"
)

// StatusFor сопоставляет ошибку с HTTP статусом
func StatusFor(err error) int {
	switch {
	case errors.Is(err, exchange.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, exchange.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, exchange.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, exchange.ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, exchange.ErrInsufficientFunds):
		return fiber.StatusPaymentRequired
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// SendError отправляет ошибку клиенту. Текст доменных ошибок показывается как есть,
// остальные пишутся в лог и скрываются.
func SendError(c fiber.Ctx, log *logrus.Entry, err error, op string) error {
	code := StatusFor(err)
	if exchange.IsDomain(err) {
		return c.Status(code).JSON(fiber.Map{"error": err.Error()})
	}

	log.WithError(err).Error("Ошибка: " + op)
	return c.Status(code).JSON(fiber.Map{"error": "Внутренняя ошибка сервера"})
}
