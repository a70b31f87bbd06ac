package repositories

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"travelwild_backend/internal/models"
)

var ErrBookingNotFound = errors.New("booking not found")

type BookingRepository interface {
	FindByID(db *gorm.DB, id string) (*models.Booking, error)
	FindByPaymentReference(db *gorm.DB, ref string) (*models.Booking, error)
	// LockForUpdate читает бронирование с SELECT ... FOR UPDATE, вызывать внутри транзакции.
	LockForUpdate(db *gorm.DB, id string) (*models.Booking, error)
	// UpdateState сохраняет поля, которые меняет машина состояний.
	UpdateState(db *gorm.DB, b *models.Booking) error
	SetPaymentReference(db *gorm.DB, id, ref string) error
	// MarkPayoutNotified ставит флаг, только если он ещё не стоит. false - флаг уже был.
	MarkPayoutNotified(db *gorm.DB, id string) (bool, error)
	ResetPayoutNotified(db *gorm.DB, id string) error
	SetPayoutReleased(db *gorm.DB, id string) error
}

type BookingRepositoryImpl struct{}

func NewBookingRepository() BookingRepository {
	return &BookingRepositoryImpl{}
}

func (r *BookingRepositoryImpl) FindByID(db *gorm.DB, id string) (*models.Booking, error) {
	var b models.Booking
	if err := db.Preload("School").First(&b, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *BookingRepositoryImpl) FindByPaymentReference(db *gorm.DB, ref string) (*models.Booking, error) {
	var b models.Booking
	if err := db.First(&b, "payment_reference = ?", ref).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *BookingRepositoryImpl) LockForUpdate(db *gorm.DB, id string) (*models.Booking, error) {
	var b models.Booking
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&b, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *BookingRepositoryImpl) UpdateState(db *gorm.DB, b *models.Booking) error {
	result := db.Model(&models.Booking{}).Where("id = ?", b.ID).Updates(map[string]interface{}{
		"status":          b.Status,
		"payment_status":  b.PaymentStatus,
		"refund_percent":  b.RefundPercent,
		"partial_percent": b.PartialPercent,
		"canceled_at":     b.CanceledAt,
		"updated_at":      time.Now(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (r *BookingRepositoryImpl) SetPaymentReference(db *gorm.DB, id, ref string) error {
	return db.Model(&models.Booking{}).Where("id = ?", id).Updates(map[string]interface{}{
		"payment_reference": ref,
		"updated_at":        time.Now(),
	}).Error
}

func (r *BookingRepositoryImpl) MarkPayoutNotified(db *gorm.DB, id string) (bool, error) {
	result := db.Model(&models.Booking{}).
		Where("id = ? AND payout_notification_sent = ?", id, false).
		Updates(map[string]interface{}{
			"payout_notification_sent": true,
			"updated_at":               time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *BookingRepositoryImpl) ResetPayoutNotified(db *gorm.DB, id string) error {
	return db.Model(&models.Booking{}).Where("id = ? AND payout_released = ?", id, false).
		Updates(map[string]interface{}{
			"payout_notification_sent": false,
			"updated_at":               time.Now(),
		}).Error
}

func (r *BookingRepositoryImpl) SetPayoutReleased(db *gorm.DB, id string) error {
	return db.Model(&models.Booking{}).Where("id = ?", id).Updates(map[string]interface{}{
		"payout_released": true,
		"updated_at":      time.Now(),
	}).Error
}
