package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Booking - бронирование путешественником конкретной сессии активности школы.
// Статус меняется только через booking.StateMachine, записи никогда не удаляются.
type Booking struct {
	BaseModel
	UserID        string `gorm:"type:uuid;not null;index"`
	SchoolID      string `gorm:"type:uuid;not null;index"`
	ActivityName  string `gorm:"size:255"`
	TravelerName  string `gorm:"size:255"`
	TravelerEmail string `gorm:"size:255"`

	Amount      decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Currency    string          `gorm:"size:3;not null;default:'EUR'"`
	SessionDate *time.Time      `gorm:"type:date"`

	Status         BookingStatus    `gorm:"size:32;not null;default:'pending';index"`
	PaymentStatus  PaymentStatus    `gorm:"size:16;not null;default:'unpaid'"`
	RefundPercent  decimal.Decimal  `gorm:"type:decimal(5,2);not null;default:0"`
	PartialPercent *decimal.Decimal `gorm:"type:decimal(5,2)"`

	PaymentReference       *string `gorm:"size:255;index"`
	PayoutReleased         bool    `gorm:"not null;default:false"`
	PayoutNotificationSent bool    `gorm:"not null;default:false"`
	CanceledAt             *time.Time

	School *School `gorm:"foreignKey:SchoolID"`
}

// BookingPayment - подтверждённый платёж шлюза. Уникальная ссылка на платёж
// отсекает повторную доставку вебхука.
type BookingPayment struct {
	BaseModel
	BookingID          string          `gorm:"type:uuid;not null;index"`
	ExternalPaymentRef string          `gorm:"size:255;not null;uniqueIndex"`
	Amount             decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Currency           string          `gorm:"size:3;not null;default:'EUR'"`
	Status             PaymentStatus   `gorm:"size:16;not null"`
}
