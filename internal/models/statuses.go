package models

type BookingStatus string
type PaymentStatus string
type SchoolPlan string
type SchoolStatus string
type SubscriptionStatus string
type NotificationStatus string
type UserRole string

const (
	BookingStatusPending            BookingStatus = "pending"
	BookingStatusPendingPayment     BookingStatus = "pending_payment"
	BookingStatusConfirmed          BookingStatus = "confirmed"
	BookingStatusPaidPendingRelease BookingStatus = "paid_pending_release"
	BookingStatusCompleted          BookingStatus = "completed"
	BookingStatusPartial            BookingStatus = "partial"
	BookingStatusNoShow             BookingStatus = "no_show"
	BookingStatusCanceled           BookingStatus = "canceled"

	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
	PaymentStatusFailed   PaymentStatus = "failed"

	PlanBasic   SchoolPlan = "basic"
	PlanMedium  SchoolPlan = "medium"
	PlanPremium SchoolPlan = "premium"

	SchoolStatusDraft    SchoolStatus = "draft"
	SchoolStatusPending  SchoolStatus = "pending"
	SchoolStatusActive   SchoolStatus = "active"
	SchoolStatusInactive SchoolStatus = "inactive"

	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusPending  SubscriptionStatus = "pending"

	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSending NotificationStatus = "sending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"

	UserRoleTraveler UserRole = "traveler"
	UserRoleSchool   UserRole = "school"
	UserRoleAdmin    UserRole = "admin"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusPendingPayment, BookingStatusConfirmed,
		BookingStatusPaidPendingRelease, BookingStatusCompleted, BookingStatusPartial,
		BookingStatusNoShow, BookingStatusCanceled:
		return true
	}
	return false
}

// IsTerminal - completed, partial, no_show, canceled
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingStatusCompleted, BookingStatusPartial, BookingStatusNoShow, BookingStatusCanceled:
		return true
	}
	return false
}

// IsOutcome - статусы, которые проставляет школа и после которых выполняется расчёт.
func (s BookingStatus) IsOutcome() bool {
	switch s {
	case BookingStatusCompleted, BookingStatusPartial, BookingStatusNoShow:
		return true
	}
	return false
}

// IsPaid - оплата подтверждена, занятие ещё не прошло
func (s BookingStatus) IsPaid() bool {
	return s == BookingStatusConfirmed || s == BookingStatusPaidPendingRelease
}

func (p SchoolPlan) Valid() bool {
	switch p {
	case PlanBasic, PlanMedium, PlanPremium:
		return true
	}
	return false
}

// Rank - 0 (нет плана) .. 3 (premium)
func (p SchoolPlan) Rank() int {
	switch p {
	case PlanBasic:
		return 1
	case PlanMedium:
		return 2
	case PlanPremium:
		return 3
	}
	return 0
}

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentStatusUnpaid, PaymentStatusPaid, PaymentStatusRefunded, PaymentStatusFailed:
		return true
	}
	return false
}
