package repositories

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"travelwild_backend/internal/models"
)

var ErrSubscriptionNotFound = errors.New("subscription not found")

type SubscriptionRepository interface {
	FindByExternalID(db *gorm.DB, externalID string) (*models.SchoolSubscription, error)
	// FindLatestForSchool - самая свежая подписка школы, любая по статусу.
	FindLatestForSchool(db *gorm.DB, schoolID string) (*models.SchoolSubscription, error)
	// CancelOtherActive отменяет активные подписки школы, кроме exceptExternalID.
	CancelOtherActive(db *gorm.DB, schoolID, exceptExternalID string) (int64, error)
	// Upsert вставляет или обновляет подписку по external_subscription_id.
	Upsert(db *gorm.DB, sub *models.SchoolSubscription) error
	FindExpired(db *gorm.DB, now time.Time, limit int) ([]models.SchoolSubscription, error)
	UpdateStatus(db *gorm.DB, id string, status models.SubscriptionStatus) error
}

type SubscriptionRepositoryImpl struct{}

func NewSubscriptionRepository() SubscriptionRepository {
	return &SubscriptionRepositoryImpl{}
}

func (r *SubscriptionRepositoryImpl) FindByExternalID(db *gorm.DB, externalID string) (*models.SchoolSubscription, error) {
	var sub models.SchoolSubscription
	if err := db.First(&sub, "external_subscription_id = ?", externalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (r *SubscriptionRepositoryImpl) FindLatestForSchool(db *gorm.DB, schoolID string) (*models.SchoolSubscription, error) {
	var sub models.SchoolSubscription
	err := db.Where("school_id = ?", schoolID).Order("created_at DESC").First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (r *SubscriptionRepositoryImpl) CancelOtherActive(db *gorm.DB, schoolID, exceptExternalID string) (int64, error) {
	result := db.Model(&models.SchoolSubscription{}).
		Where("school_id = ? AND status = ? AND external_subscription_id <> ?",
			schoolID, models.SubscriptionStatusActive, exceptExternalID).
		Updates(map[string]interface{}{
			"status":     models.SubscriptionStatusCanceled,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

func (r *SubscriptionRepositoryImpl) Upsert(db *gorm.DB, sub *models.SchoolSubscription) error {
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "external_subscription_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"school_id", "plan", "status", "starts_at", "ends_at", "external_customer_id", "updated_at",
		}),
	}).Create(sub).Error
}

func (r *SubscriptionRepositoryImpl) FindExpired(db *gorm.DB, now time.Time, limit int) ([]models.SchoolSubscription, error) {
	var subs []models.SchoolSubscription
	err := db.Where("status = ? AND ends_at IS NOT NULL AND ends_at < ?", models.SubscriptionStatusActive, now).
		Order("ends_at ASC").
		Limit(limit).
		Find(&subs).Error
	return subs, err
}

func (r *SubscriptionRepositoryImpl) UpdateStatus(db *gorm.DB, id string, status models.SubscriptionStatus) error {
	result := db.Model(&models.SchoolSubscription{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}
