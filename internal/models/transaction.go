package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SchoolTransaction - неизменяемая запись журнала расчёта по бронированию.
// FeePercent/FeeAmount/NetAmount фиксируются при создании и дальше не пересчитываются,
// даже если план школы изменится. Меняются только IsReleased/ReleasedAt.
type SchoolTransaction struct {
	BaseModel
	SchoolID           string          `gorm:"type:uuid;not null;index"`
	BookingID          string          `gorm:"type:uuid;not null;index"`
	Amount             decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	FeePercent         decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	FeeAmount          decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	NetAmount          decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	IsReleased         bool            `gorm:"not null;default:false;index"`
	ReleasedAt         *time.Time
	ExternalPaymentRef string `gorm:"size:255;not null;uniqueIndex"`
}

// PayoutNotification - исходящее письмо о выплате (outbox). Создаётся в одной
// транзакции с SchoolTransaction, доставляется после коммита.
type PayoutNotification struct {
	BaseModel
	BookingID     string             `gorm:"type:uuid;not null;index"`
	TransactionID string             `gorm:"type:uuid;not null"`
	Recipient     string             `gorm:"size:255;not null"`
	Subject       string             `gorm:"size:255;not null"`
	Body          string             `gorm:"type:text;not null"`
	Status        NotificationStatus `gorm:"size:16;not null;default:'pending';index"`
	Attempts      int                `gorm:"not null;default:0"`
	LastError     string             `gorm:"type:text"`
	// ClaimedAt - когда отправитель забрал письмо в работу (статус sending)
	ClaimedAt *time.Time
	SentAt    *time.Time
}
