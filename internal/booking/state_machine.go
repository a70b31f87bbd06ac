package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"travelwild_backend/internal/finance"
	"travelwild_backend/internal/models"
)

var (
	// ErrPayoutReleased - выплата уже проведена, бронирование заморожено.
	ErrPayoutReleased = errors.New("payout already released, booking is frozen")
	// ErrActorNotAllowed - участник не может выполнять этот переход.
	ErrActorNotAllowed = errors.New("actor is not allowed to perform this transition")
	// ErrAmountMismatch - оплаченная сумма не равна сумме бронирования.
	ErrAmountMismatch = errors.New("paid amount does not match booking amount")
)

var (
	minPartialPercent = decimal.NewFromInt(10)
	maxPartialPercent = decimal.NewFromInt(100)
)

// TransitionError - нарушено условие перехода. Текст показывается пользователю.
type TransitionError struct {
	From   models.BookingStatus
	To     models.BookingStatus
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change booking from %s to %s: %s", e.From, e.To, e.Reason)
}

type ActorKind string

const (
	ActorTraveler ActorKind = "traveler"
	ActorSchool   ActorKind = "school"
	ActorAdmin    ActorKind = "admin"
	ActorSystem   ActorKind = "system"
)

// Actor - кто инициирует переход.
type Actor struct {
	Kind     ActorKind
	UserID   string
	SchoolID string
}

func System() Actor { return Actor{Kind: ActorSystem} }

func (a Actor) privileged() bool {
	return a.Kind == ActorAdmin || a.Kind == ActorSystem
}

// Transition - запрошенная смена статуса.
type Transition struct {
	To             models.BookingStatus
	PartialPercent *decimal.Decimal
	// PaidAmount - сумма, подтверждённая платёжным шлюзом.
	PaidAmount *decimal.Decimal
}

var transitions = map[models.BookingStatus][]models.BookingStatus{
	models.BookingStatusPending: {
		models.BookingStatusPendingPayment,
		models.BookingStatusConfirmed,
		models.BookingStatusPaidPendingRelease,
		models.BookingStatusCanceled,
	},
	models.BookingStatusPendingPayment: {
		models.BookingStatusConfirmed,
		models.BookingStatusPaidPendingRelease,
		models.BookingStatusCanceled,
	},
	models.BookingStatusConfirmed: {
		models.BookingStatusCompleted,
		models.BookingStatusPartial,
		models.BookingStatusNoShow,
		models.BookingStatusCanceled,
	},
	models.BookingStatusPaidPendingRelease: {
		models.BookingStatusCompleted,
		models.BookingStatusPartial,
		models.BookingStatusNoShow,
		models.BookingStatusCanceled,
	},
}

// CanTransition - есть ли ребро from -> to в таблице переходов.
func CanTransition(from, to models.BookingStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AllowedTargets возвращает статусы, в которые можно перейти из from.
func AllowedTargets(from models.BookingStatus) []models.BookingStatus {
	out := make([]models.BookingStatus, len(transitions[from]))
	copy(out, transitions[from])
	return out
}

// Check проверяет переход, ничего не меняя в бронировании.
func Check(b *models.Booking, actor Actor, tr Transition, now time.Time) error {
	if b.PayoutReleased {
		return ErrPayoutReleased
	}
	if !tr.To.Valid() {
		return &TransitionError{From: b.Status, To: tr.To, Reason: "unknown status"}
	}
	if b.Status == tr.To {
		return &TransitionError{From: b.Status, To: tr.To, Reason: "booking already has this status"}
	}
	if !CanTransition(b.Status, tr.To) {
		return &TransitionError{From: b.Status, To: tr.To, Reason: "transition is not allowed"}
	}

	switch {
	case tr.To.IsPaid():
		return checkPayment(b, actor, tr)
	case tr.To.IsOutcome():
		return checkOutcome(b, actor, tr, now)
	case tr.To == models.BookingStatusCanceled:
		return checkCancel(b, actor)
	case tr.To == models.BookingStatusPendingPayment:
		if !actor.privileged() && !ownsAsTraveler(b, actor) {
			return ErrActorNotAllowed
		}
	}
	return nil
}

// Apply проверяет переход и применяет его к b.
// При ошибке бронирование не меняется.
func Apply(b *models.Booking, actor Actor, tr Transition, now time.Time) error {
	if err := Check(b, actor, tr, now); err != nil {
		return err
	}
	apply(b, tr, now)
	return nil
}

// Correct меняет уже проставленный итог (completed/partial/no_show) на другой итог.
// Доступно только администратору, пока выплата не проведена.
func Correct(b *models.Booking, actor Actor, tr Transition, now time.Time) error {
	if b.PayoutReleased {
		return ErrPayoutReleased
	}
	if actor.Kind != ActorAdmin {
		return ErrActorNotAllowed
	}
	if !b.Status.IsOutcome() || !tr.To.IsOutcome() {
		return &TransitionError{From: b.Status, To: tr.To, Reason: "only session outcomes can be corrected"}
	}
	if err := checkOutcomeGuards(b, tr, now); err != nil {
		return err
	}
	if b.Status == tr.To && tr.To != models.BookingStatusPartial {
		return &TransitionError{From: b.Status, To: tr.To, Reason: "booking already has this status"}
	}
	apply(b, tr, now)
	return nil
}

func apply(b *models.Booking, tr Transition, now time.Time) {
	b.Status = tr.To

	if tr.To == models.BookingStatusPartial {
		p := tr.PartialPercent.Round(2)
		b.PartialPercent = &p
	} else {
		b.PartialPercent = nil
	}

	switch {
	case tr.To.IsPaid():
		b.PaymentStatus = models.PaymentStatusPaid
	case tr.To == models.BookingStatusCanceled:
		b.RefundPercent = finance.RefundPercent(b.SessionDate, now)
		canceledAt := now
		b.CanceledAt = &canceledAt
	}
}

func checkPayment(b *models.Booking, actor Actor, tr Transition) error {
	if !actor.privileged() {
		return ErrActorNotAllowed
	}
	if tr.PaidAmount == nil {
		return &TransitionError{From: b.Status, To: tr.To, Reason: "payment amount is required"}
	}
	if !tr.PaidAmount.Equal(b.Amount) {
		return ErrAmountMismatch
	}
	return nil
}

func checkOutcome(b *models.Booking, actor Actor, tr Transition, now time.Time) error {
	if !actor.privileged() && !(actor.Kind == ActorSchool && actor.SchoolID != "" && actor.SchoolID == b.SchoolID) {
		return ErrActorNotAllowed
	}
	return checkOutcomeGuards(b, tr, now)
}

func checkOutcomeGuards(b *models.Booking, tr Transition, now time.Time) error {
	if b.SessionDate == nil {
		return &TransitionError{From: b.Status, To: tr.To, Reason: "session date is not set"}
	}
	if finance.DaysUntil(*b.SessionDate, now) > 0 {
		return &TransitionError{From: b.Status, To: tr.To, Reason: "the session has not taken place yet"}
	}
	if tr.To == models.BookingStatusPartial {
		if tr.PartialPercent == nil {
			return &TransitionError{From: b.Status, To: tr.To, Reason: "partial percent is required"}
		}
		if tr.PartialPercent.LessThan(minPartialPercent) || tr.PartialPercent.GreaterThan(maxPartialPercent) {
			return &TransitionError{From: b.Status, To: tr.To, Reason: "partial percent must be between 10 and 100"}
		}
	}
	return nil
}

func checkCancel(b *models.Booking, actor Actor) error {
	if actor.privileged() || ownsAsTraveler(b, actor) {
		return nil
	}
	return ErrActorNotAllowed
}

func ownsAsTraveler(b *models.Booking, actor Actor) bool {
	return actor.Kind == ActorTraveler && actor.UserID != "" && actor.UserID == b.UserID
}
