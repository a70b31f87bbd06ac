package repositories

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"travelwild_backend/internal/models"
)

var ErrNotificationNotFound = errors.New("payout notification not found")

type PayoutNotificationRepository interface {
	Create(db *gorm.DB, n *models.PayoutNotification) error
	FindByID(db *gorm.DB, id string) (*models.PayoutNotification, error)
	// FindDeliverable - pending/failed письма и зависшие в sending дольше staleBefore,
	// у которых остались попытки, старые первыми.
	FindDeliverable(db *gorm.DB, maxAttempts, limit int, staleBefore time.Time) ([]models.PayoutNotification, error)
	// Claim переводит письмо в sending. false - письмо уже забрал другой отправитель.
	Claim(db *gorm.DB, id string, maxAttempts int, at, staleBefore time.Time) (bool, error)
	MarkSent(db *gorm.DB, id string, at time.Time) error
	MarkFailed(db *gorm.DB, id string, lastErr string) error
}

type PayoutNotificationRepositoryImpl struct{}

func NewPayoutNotificationRepository() PayoutNotificationRepository {
	return &PayoutNotificationRepositoryImpl{}
}

func (r *PayoutNotificationRepositoryImpl) Create(db *gorm.DB, n *models.PayoutNotification) error {
	if n.Status == "" {
		n.Status = models.NotificationStatusPending
	}
	return db.Create(n).Error
}

func (r *PayoutNotificationRepositoryImpl) FindByID(db *gorm.DB, id string) (*models.PayoutNotification, error) {
	var n models.PayoutNotification
	if err := db.First(&n, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	return &n, nil
}

var claimableStatuses = []models.NotificationStatus{models.NotificationStatusPending, models.NotificationStatusFailed}

func (r *PayoutNotificationRepositoryImpl) FindDeliverable(db *gorm.DB, maxAttempts, limit int, staleBefore time.Time) ([]models.PayoutNotification, error) {
	var items []models.PayoutNotification
	err := db.Where("(status IN ? OR (status = ? AND claimed_at < ?)) AND attempts < ?",
		claimableStatuses, models.NotificationStatusSending, staleBefore, maxAttempts).
		Order("created_at ASC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

func (r *PayoutNotificationRepositoryImpl) Claim(db *gorm.DB, id string, maxAttempts int, at, staleBefore time.Time) (bool, error) {
	res := db.Model(&models.PayoutNotification{}).
		Where("id = ? AND attempts < ? AND (status IN ? OR (status = ? AND claimed_at < ?))",
			id, maxAttempts, claimableStatuses, models.NotificationStatusSending, staleBefore).
		Updates(map[string]interface{}{
			"status":     models.NotificationStatusSending,
			"claimed_at": at,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *PayoutNotificationRepositoryImpl) MarkSent(db *gorm.DB, id string, at time.Time) error {
	return db.Model(&models.PayoutNotification{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     models.NotificationStatusSent,
		"attempts":   gorm.Expr("attempts + 1"),
		"sent_at":    at,
		"last_error": "",
		"updated_at": time.Now(),
	}).Error
}

func (r *PayoutNotificationRepositoryImpl) MarkFailed(db *gorm.DB, id string, lastErr string) error {
	return db.Model(&models.PayoutNotification{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     models.NotificationStatusFailed,
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": lastErr,
		"updated_at": time.Now(),
	}).Error
}
