package models

import (
	"time"
)

type BaseModel struct {
	ID        string    `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	CreatedAt time.Time `gorm:"default:now()"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// All возвращает модели для AutoMigrate в порядке зависимостей.
func All() []interface{} {
	return []interface{}{
		&School{},
		&SchoolFinance{},
		&SchoolSubscription{},
		&Booking{},
		&BookingPayment{},
		&SchoolTransaction{},
		&PayoutNotification{},
		&WebhookEvent{},
	}
}
