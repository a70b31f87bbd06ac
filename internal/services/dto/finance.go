package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionListQuery struct {
	Released *bool `form:"released"`
	Page     int   `form:"page" validate:"omitempty,min=1"`
	PageSize int   `form:"page_size" validate:"omitempty,min=1,max=100"`
}

type TransactionResponse struct {
	ID         string          `json:"id"`
	SchoolID   string          `json:"school_id"`
	BookingID  string          `json:"booking_id"`
	Amount     decimal.Decimal `json:"amount"`
	FeePercent decimal.Decimal `json:"fee_percent"`
	FeeAmount  decimal.Decimal `json:"fee_amount"`
	NetAmount  decimal.Decimal `json:"net_amount"`
	IsReleased bool            `json:"is_released"`
	ReleasedAt *time.Time      `json:"released_at,omitempty"`
	Reference  string          `json:"reference"`
	CreatedAt  time.Time       `json:"created_at"`
}

type TransactionListResponse struct {
	Transactions []*TransactionResponse `json:"transactions"`
	Total        int64                  `json:"total"`
	Page         int                    `json:"page"`
	PageSize     int                    `json:"page_size"`
	TotalPages   int                    `json:"total_pages"`
}

type FinanceSummaryResponse struct {
	SchoolID         string          `json:"school_id"`
	Plan             string          `json:"plan"`
	FeePercent       decimal.Decimal `json:"fee_percent"`
	Currency         string          `json:"currency"`
	TransactionCount int64           `json:"transaction_count"`
	GrossTotal       decimal.Decimal `json:"gross_total"`
	FeesTotal        decimal.Decimal `json:"fees_total"`
	NetTotal         decimal.Decimal `json:"net_total"`
	ReleasedNet      decimal.Decimal `json:"released_net"`
	PendingNet       decimal.Decimal `json:"pending_net"`
}

type ReleaseResponse struct {
	Transaction           *TransactionResponse `json:"transaction"`
	AlreadyReleased       bool                 `json:"already_released"`
	BookingPayoutReleased bool                 `json:"booking_payout_released"`
	NotificationSent      bool                 `json:"notification_sent"`
	NotificationError     string               `json:"notification_error,omitempty"`
	StatementURL          string               `json:"statement_url,omitempty"`
}
