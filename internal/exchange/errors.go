package exchange

import (
	"errors"
	"fmt"
)

// Виды доменных ошибок. Проверяются через errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInconsistentSettlement означает сбой хранилища после списания, но до зачисления баллов.
	// Транзакция откатывается, но ситуация требует внимания и в лог пишется отдельно.
	ErrInconsistentSettlement = errors.New("inconsistent settlement")
)

// Error – доменная ошибка с понятным пользователю сообщением
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validationf создаёт ошибку валидации
func Validationf(format string, args ...any) error {
	return newError(ErrValidation, format, args...)
}

// NotFoundf создаёт ошибку отсутствующей сущности
func NotFoundf(format string, args ...any) error {
	return newError(ErrNotFound, format, args...)
}

// Forbiddenf создаёт ошибку доступа
func Forbiddenf(format string, args ...any) error {
	return newError(ErrForbidden, format, args...)
}

// Conflictf создаёт ошибку конфликта состояния
func Conflictf(format string, args ...any) error {
	return newError(ErrConflict, format, args...)
}

// IsDomain сообщает, относится ли ошибка к одному из пяти доменных видов
func IsDomain(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInsufficientFunds)
}
