package models

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEvent - принятое событие платёжного шлюза. EventID уникален,
// повторная доставка того же события ничего не меняет.
type WebhookEvent struct {
	BaseModel
	EventID     string         `gorm:"size:255;not null;uniqueIndex"`
	Type        string         `gorm:"size:128;not null;index"`
	Payload     datatypes.JSON `gorm:"type:jsonb"`
	ProcessedAt *time.Time
}
