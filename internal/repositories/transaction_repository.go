package repositories

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"travelwild_backend/internal/models"
)

var (
	ErrTransactionNotFound     = errors.New("transaction not found")
	ErrDuplicateTransactionRef = errors.New("transaction reference already exists")
)

// TransactionTotals - агрегаты журнала школы.
type TransactionTotals struct {
	Count       int64
	Gross       decimal.Decimal
	Fees        decimal.Decimal
	Net         decimal.Decimal
	ReleasedNet decimal.Decimal
}

type TransactionRepository interface {
	Create(db *gorm.DB, tx *models.SchoolTransaction) error
	CountByBooking(db *gorm.DB, bookingID string) (int64, error)
	FindByID(db *gorm.DB, id string) (*models.SchoolTransaction, error)
	LockByID(db *gorm.DB, id string) (*models.SchoolTransaction, error)
	FindLatestByBooking(db *gorm.DB, bookingID string) (*models.SchoolTransaction, error)
	ListBySchool(db *gorm.DB, schoolID string, released *bool, page, pageSize int) ([]models.SchoolTransaction, int64, error)
	TotalsBySchool(db *gorm.DB, schoolID string) (*TransactionTotals, error)
	// MarkReleased ставит is_released, false - запись уже была отмечена.
	MarkReleased(db *gorm.DB, id string, at time.Time) (bool, error)
}

type TransactionRepositoryImpl struct{}

func NewTransactionRepository() TransactionRepository {
	return &TransactionRepositoryImpl{}
}

func (r *TransactionRepositoryImpl) Create(db *gorm.DB, tx *models.SchoolTransaction) error {
	if err := db.Create(tx).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateTransactionRef
		}
		return err
	}
	return nil
}

func (r *TransactionRepositoryImpl) CountByBooking(db *gorm.DB, bookingID string) (int64, error) {
	var count int64
	err := db.Model(&models.SchoolTransaction{}).Where("booking_id = ?", bookingID).Count(&count).Error
	return count, err
}

func (r *TransactionRepositoryImpl) FindByID(db *gorm.DB, id string) (*models.SchoolTransaction, error) {
	var tx models.SchoolTransaction
	if err := db.First(&tx, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &tx, nil
}

func (r *TransactionRepositoryImpl) LockByID(db *gorm.DB, id string) (*models.SchoolTransaction, error) {
	var tx models.SchoolTransaction
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&tx, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &tx, nil
}

func (r *TransactionRepositoryImpl) FindLatestByBooking(db *gorm.DB, bookingID string) (*models.SchoolTransaction, error) {
	var tx models.SchoolTransaction
	err := db.Where("booking_id = ?", bookingID).Order("created_at DESC").First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &tx, nil
}

func (r *TransactionRepositoryImpl) ListBySchool(db *gorm.DB, schoolID string, released *bool, page, pageSize int) ([]models.SchoolTransaction, int64, error) {
	var (
		items []models.SchoolTransaction
		total int64
	)

	query := db.Model(&models.SchoolTransaction{}).Where("school_id = ?", schoolID)
	if released != nil {
		query = query.Where("is_released = ?", *released)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&items).Error
	return items, total, err
}

func (r *TransactionRepositoryImpl) TotalsBySchool(db *gorm.DB, schoolID string) (*TransactionTotals, error) {
	var totals TransactionTotals
	err := db.Model(&models.SchoolTransaction{}).
		Select(`COUNT(*) AS count,
			COALESCE(SUM(amount), 0) AS gross,
			COALESCE(SUM(fee_amount), 0) AS fees,
			COALESCE(SUM(net_amount), 0) AS net,
			COALESCE(SUM(CASE WHEN is_released THEN net_amount ELSE 0 END), 0) AS released_net`).
		Where("school_id = ?", schoolID).
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return &totals, nil
}

func (r *TransactionRepositoryImpl) MarkReleased(db *gorm.DB, id string, at time.Time) (bool, error) {
	result := db.Model(&models.SchoolTransaction{}).
		Where("id = ? AND is_released = ?", id, false).
		Updates(map[string]interface{}{
			"is_released": true,
			"released_at": at,
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
