package stripe

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	stripego "github.com/stripe/stripe-go/v76"
)

// Типы событий, которые обрабатывает сервис.
const (
	EventPaymentIntentSucceeded = string(stripego.EventTypePaymentIntentSucceeded)
	EventPaymentIntentFailed    = string(stripego.EventTypePaymentIntentPaymentFailed)
	EventSubscriptionCreated    = string(stripego.EventTypeCustomerSubscriptionCreated)
	EventSubscriptionUpdated    = string(stripego.EventTypeCustomerSubscriptionUpdated)
	EventSubscriptionDeleted    = string(stripego.EventTypeCustomerSubscriptionDeleted)
	EventCheckoutCompleted      = string(stripego.EventTypeCheckoutSessionCompleted)
)

// Event - проверенное событие шлюза. Объект разбирается по типу события отдельно.
type Event struct {
	stripego.Event
}

func (e *Event) TypeName() string {
	return string(e.Type)
}

func (e *Event) PaymentIntent() (*PaymentIntent, error) {
	var pi stripego.PaymentIntent
	if err := json.Unmarshal(e.Data.Raw, &pi); err != nil || pi.ID == "" {
		return nil, fmt.Errorf("%w: payment intent object", ErrMalformedEvent)
	}
	return &PaymentIntent{PaymentIntent: &pi}, nil
}

func (e *Event) Subscription() (*Subscription, error) {
	var s stripego.Subscription
	if err := json.Unmarshal(e.Data.Raw, &s); err != nil || s.ID == "" {
		return nil, fmt.Errorf("%w: subscription object", ErrMalformedEvent)
	}
	return &Subscription{Subscription: &s}, nil
}

type PaymentIntent struct {
	*stripego.PaymentIntent
}

// PaidAmount - сумма платежа в основных единицах валюты (центы / 100).
func (pi *PaymentIntent) PaidAmount() decimal.Decimal {
	cents := pi.AmountReceived
	if cents == 0 {
		cents = pi.Amount
	}
	return decimal.New(cents, -2)
}

func (pi *PaymentIntent) CurrencyCode() string {
	return string(pi.Currency)
}

func (pi *PaymentIntent) BookingID() string {
	return pi.Metadata["booking_id"]
}

func (pi *PaymentIntent) FailureMessage() string {
	if pi.LastPaymentError == nil {
		return ""
	}
	return pi.LastPaymentError.Msg
}

type Subscription struct {
	*stripego.Subscription
}

func (s *Subscription) CustomerID() string {
	if s.Customer == nil {
		return ""
	}
	return s.Customer.ID
}

func (s *Subscription) StatusName() string {
	return string(s.Status)
}

// PriceID - цена первой позиции подписки.
func (s *Subscription) PriceID() string {
	if s.Items == nil || len(s.Items.Data) == 0 || s.Items.Data[0].Price == nil {
		return ""
	}
	return s.Items.Data[0].Price.ID
}

func (s *Subscription) SchoolID() string {
	return s.Metadata["school_id"]
}

func (s *Subscription) PlanFromMetadata() string {
	return strings.ToLower(strings.TrimSpace(s.Metadata["plan"]))
}

func (s *Subscription) PeriodStart() *time.Time {
	return unixPtr(s.CurrentPeriodStart)
}

func (s *Subscription) PeriodEnd() *time.Time {
	return unixPtr(s.CurrentPeriodEnd)
}

func unixPtr(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
