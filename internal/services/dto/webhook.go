package dto

import "time"

const (
	WebhookProcessed = "processed"
	WebhookDuplicate = "duplicate"
	WebhookIgnored   = "ignored"
)

type WebhookResponse struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Status  string `json:"status"`
	Detail  string `json:"detail,omitempty"`
}

// SubscriptionUpdate - состояние подписки из события шлюза.
type SubscriptionUpdate struct {
	ExternalID    string
	CustomerID    string
	SchoolID      string
	Plan          string
	GatewayStatus string
	Deleted       bool
	PeriodStart   *time.Time
	PeriodEnd     *time.Time
}
