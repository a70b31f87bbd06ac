package repositories

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"travelwild_backend/internal/models"
)

var ErrDuplicateWebhookEvent = errors.New("webhook event already processed")

type WebhookEventRepository interface {
	// Create фиксирует событие. Повтор того же event id -> ErrDuplicateWebhookEvent.
	Create(db *gorm.DB, e *models.WebhookEvent) error
	MarkProcessed(db *gorm.DB, eventID string, at time.Time) error
}

type WebhookEventRepositoryImpl struct{}

func NewWebhookEventRepository() WebhookEventRepository {
	return &WebhookEventRepositoryImpl{}
}

func (r *WebhookEventRepositoryImpl) Create(db *gorm.DB, e *models.WebhookEvent) error {
	if err := db.Create(e).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateWebhookEvent
		}
		return err
	}
	return nil
}

func (r *WebhookEventRepositoryImpl) MarkProcessed(db *gorm.DB, eventID string, at time.Time) error {
	return db.Model(&models.WebhookEvent{}).Where("event_id = ?", eventID).
		Update("processed_at", at).Error
}
