package repositories

import (
	"errors"

	"gorm.io/gorm"

	"travelwild_backend/internal/models"
)

var (
	ErrDuplicatePaymentRef = errors.New("payment reference already applied")
	ErrPaymentNotFound     = errors.New("payment not found")
)

type PaymentRepository interface {
	// Create вставляет платёж. Повтор той же ссылки шлюза -> ErrDuplicatePaymentRef.
	Create(db *gorm.DB, p *models.BookingPayment) error
	FindByExternalRef(db *gorm.DB, ref string) (*models.BookingPayment, error)
}

type PaymentRepositoryImpl struct{}

func NewPaymentRepository() PaymentRepository {
	return &PaymentRepositoryImpl{}
}

func (r *PaymentRepositoryImpl) Create(db *gorm.DB, p *models.BookingPayment) error {
	if err := db.Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicatePaymentRef
		}
		return err
	}
	return nil
}

func (r *PaymentRepositoryImpl) FindByExternalRef(db *gorm.DB, ref string) (*models.BookingPayment, error) {
	var p models.BookingPayment
	if err := db.First(&p, "external_payment_ref = ?", ref).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}
