package exchange

import (
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/rajivgeraev/rewear-api/internal/models"
)

// ValidateNew проверяет инварианты новой записи журнала перед сохранением
func ValidateNew(e *models.Exchange) error {
	if e.ID == uuid.Nil {
		return Validationf("не задан ID обмена")
	}
	if !e.Kind.Valid() {
		return Validationf("недопустимый тип обмена: %q", e.Kind)
	}
	if e.InitiatorID == uuid.Nil || e.RecipientID == uuid.Nil {
		return Validationf("не указаны участники обмена")
	}
	if e.InitiatorID == e.RecipientID {
		return Validationf("нельзя предложить обмен самому себе")
	}
	if e.RecipientItemID == uuid.Nil {
		return Validationf("не указана запрашиваемая вещь")
	}
	if e.Status != models.StatusPending {
		return Validationf("новый обмен должен быть в статусе %s", models.StatusPending)
	}
	if e.PointsAmount < 0 {
		return Validationf("сумма баллов не может быть отрицательной")
	}
	switch e.Kind {
	case models.KindSwap:
		if e.PointsAmount != 0 {
			return Validationf("обмен вещами не может содержать баллы")
		}
		if e.InitiatorItemID != nil && *e.InitiatorItemID == e.RecipientItemID {
			return Validationf("нельзя обменять вещь саму на себя")
		}
	case models.KindPoints:
		if e.InitiatorItemID != nil {
			return Validationf("обмен за баллы не может содержать встречную вещь")
		}
	}
	return ValidateMessage(e.Message)
}

// ValidateMessage проверяет длину комментария
func ValidateMessage(message string) error {
	if utf8.RuneCountInString(message) > models.MaxMessageLength {
		return Validationf("сообщение должно быть не длиннее %d символов", models.MaxMessageLength)
	}
	return nil
}
