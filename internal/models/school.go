package models

import (
	"time"
)

type School struct {
	BaseModel
	Name       string       `gorm:"size:255;not null"`
	Email      string       `gorm:"size:255;not null;index"`
	Status     SchoolStatus `gorm:"size:16;not null;default:'draft'"`
	IsVerified bool         `gorm:"not null;default:false"`

	Finance *SchoolFinance `gorm:"foreignKey:SchoolID"`
}

// SchoolFinance - биллинговые настройки школы, ровно одна запись на школу
// (создаётся лениво при первом обращении).
type SchoolFinance struct {
	BaseModel
	SchoolID                string     `gorm:"type:uuid;not null;uniqueIndex"`
	Plan                    SchoolPlan `gorm:"size:16;not null;default:'basic'"`
	SubscriptionActive      bool       `gorm:"not null;default:false"`
	SubscriptionStart       *time.Time
	SubscriptionEnd         *time.Time
	ExternalAccountID       *string `gorm:"size:255"`
	ExternalAccountVerified bool    `gorm:"not null;default:false"`
}

type SchoolSubscription struct {
	BaseModel
	SchoolID               string             `gorm:"type:uuid;not null;index"`
	Plan                   SchoolPlan         `gorm:"size:16;not null"`
	Status                 SubscriptionStatus `gorm:"size:16;not null;default:'pending';index"`
	StartsAt               *time.Time
	EndsAt                 *time.Time
	ExternalCustomerID     string `gorm:"size:255"`
	ExternalSubscriptionID string `gorm:"size:255;not null;uniqueIndex"`
}
