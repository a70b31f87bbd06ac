package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"travelwild_backend/internal/models"
)

// ======================
// Request DTOs
// ======================

// OutcomeRequest - итог занятия от школы или администратора.
type OutcomeRequest struct {
	Status         string           `json:"status" validate:"required,is-booking-outcome"`
	PartialPercent *decimal.Decimal `json:"partial_percent,omitempty"`
}

// PaymentConfirmation - подтверждённый шлюзом платёж.
type PaymentConfirmation struct {
	BookingID  string
	PaymentRef string
	Amount     decimal.Decimal
	Currency   string
}

// ======================
// Response DTOs
// ======================

type BookingResponse struct {
	ID                     string           `json:"id"`
	UserID                 string           `json:"user_id"`
	SchoolID               string           `json:"school_id"`
	ActivityName           string           `json:"activity_name"`
	Amount                 decimal.Decimal  `json:"amount"`
	Currency               string           `json:"currency"`
	SessionDate            *string          `json:"session_date,omitempty"`
	Status                 string           `json:"status"`
	PaymentStatus          string           `json:"payment_status"`
	RefundPercent          decimal.Decimal  `json:"refund_percent"`
	RefundAmount           decimal.Decimal  `json:"refund_amount"`
	PartialPercent         *decimal.Decimal `json:"partial_percent,omitempty"`
	PayoutReleased         bool             `json:"payout_released"`
	PayoutNotificationSent bool             `json:"payout_notification_sent"`
	CanceledAt             *time.Time       `json:"canceled_at,omitempty"`
	UpdatedAt              time.Time        `json:"updated_at"`
}

type SettlementResponse struct {
	BookingID         string               `json:"booking_id"`
	AlreadyNotified   bool                 `json:"already_notified"`
	Transaction       *TransactionResponse `json:"transaction,omitempty"`
	NotificationSent  bool                 `json:"notification_sent"`
	NotificationError string               `json:"notification_error,omitempty"`
}

type OutcomeResponse struct {
	Booking    *BookingResponse    `json:"booking"`
	Settlement *SettlementResponse `json:"settlement,omitempty"`
	// SettlementError - итог сохранён, но расчёт не прошёл; повтор через /admin/bookings/:id/settle.
	SettlementError string `json:"settlement_error,omitempty"`
}

// PaymentOutcome - результат применения платежа к бронированию.
type PaymentOutcome struct {
	Booking        *models.Booking
	AlreadyApplied bool
}
