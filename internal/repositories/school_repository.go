package repositories

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"travelwild_backend/internal/models"
)

var ErrSchoolNotFound = errors.New("school not found")

type SchoolRepository interface {
	FindByID(db *gorm.DB, id string) (*models.School, error)
	UpdateStatus(db *gorm.DB, id string, status models.SchoolStatus) error
	SetVerified(db *gorm.DB, id string, verified bool) error

	// GetOrCreateFinance возвращает единственную запись финансов школы, создавая её при первом обращении.
	GetOrCreateFinance(db *gorm.DB, schoolID string) (*models.SchoolFinance, error)
	UpdateFinance(db *gorm.DB, f *models.SchoolFinance) error
}

type SchoolRepositoryImpl struct{}

func NewSchoolRepository() SchoolRepository {
	return &SchoolRepositoryImpl{}
}

func (r *SchoolRepositoryImpl) FindByID(db *gorm.DB, id string) (*models.School, error) {
	var s models.School
	if err := db.First(&s, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSchoolNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *SchoolRepositoryImpl) UpdateStatus(db *gorm.DB, id string, status models.SchoolStatus) error {
	result := db.Model(&models.School{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSchoolNotFound
	}
	return nil
}

func (r *SchoolRepositoryImpl) SetVerified(db *gorm.DB, id string, verified bool) error {
	result := db.Model(&models.School{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_verified": verified,
		"updated_at":  time.Now(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSchoolNotFound
	}
	return nil
}

func (r *SchoolRepositoryImpl) GetOrCreateFinance(db *gorm.DB, schoolID string) (*models.SchoolFinance, error) {
	f := models.SchoolFinance{SchoolID: schoolID}
	err := db.Where(models.SchoolFinance{SchoolID: schoolID}).
		Attrs(models.SchoolFinance{Plan: models.PlanBasic}).
		FirstOrCreate(&f).Error
	if err != nil {
		// параллельный FirstOrCreate уже вставил запись
		if isUniqueViolation(err) {
			f = models.SchoolFinance{}
			if err := db.First(&f, "school_id = ?", schoolID).Error; err != nil {
				return nil, err
			}
			return &f, nil
		}
		return nil, err
	}
	return &f, nil
}

func (r *SchoolRepositoryImpl) UpdateFinance(db *gorm.DB, f *models.SchoolFinance) error {
	return db.Model(&models.SchoolFinance{}).Where("school_id = ?", f.SchoolID).Updates(map[string]interface{}{
		"plan":                f.Plan,
		"subscription_active": f.SubscriptionActive,
		"subscription_start":  f.SubscriptionStart,
		"subscription_end":    f.SubscriptionEnd,
		"external_account_id": f.ExternalAccountID,
		"updated_at":          time.Now(),
	}).Error
}
