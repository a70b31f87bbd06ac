package notifications

import (
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"travelwild_backend/internal/email"
	"travelwild_backend/internal/models"
)

//go:embed templates/*.txt
var templateFS embed.FS

const (
	tplPayoutPending     = "payout_pending"
	tplPaymentReleased   = "payment_released"
	tplConfirmedTraveler = "booking_confirmed_traveler"
	tplConfirmedSchool   = "booking_confirmed_school"

	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
	noDate         = "To be arranged"
)

// Message - готовое к отправке письмо.
type Message struct {
	Recipient string
	Subject   string
	Body      string
}

// Composer собирает тексты писем из встроенных шаблонов.
type Composer struct {
	renderer         email.TemplateRenderer
	financeTeamEmail string
}

func NewComposer(financeTeamEmail string) (*Composer, error) {
	tm := email.NewTemplateManager()
	if err := tm.LoadTemplates(templateFS, "templates"); err != nil {
		return nil, fmt.Errorf("load notification templates: %w", err)
	}
	return &Composer{renderer: tm, financeTeamEmail: financeTeamEmail}, nil
}

// PayoutPending - письмо финансовой команде после расчёта бронирования.
func (c *Composer) PayoutPending(b *models.Booking, school *models.School, tx *models.SchoolTransaction) (Message, error) {
	data := email.TemplateData{
		"Outcome":        strings.ToUpper(string(b.Status)),
		"BookingID":      b.ID,
		"SchoolName":     school.Name,
		"SchoolEmail":    school.Email,
		"Activity":       b.ActivityName,
		"SessionDate":    formatDate(b.SessionDate),
		"TravelerName":   b.TravelerName,
		"TravelerEmail":  b.TravelerEmail,
		"Amount":         money(tx.Amount, b.Currency),
		"PartialPercent": "",
		"FeePercent":     tx.FeePercent.StringFixed(2),
		"FeeAmount":      money(tx.FeeAmount, b.Currency),
		"NetAmount":      money(tx.NetAmount, b.Currency),
		"Reference":      tx.ExternalPaymentRef,
	}
	if b.PartialPercent != nil {
		data["PartialPercent"] = b.PartialPercent.StringFixed(2)
	}

	body, err := c.renderer.Render(tplPayoutPending, data)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Recipient: c.financeTeamEmail,
		Subject:   fmt.Sprintf("Payout Pending - Booking #%s", b.ID),
		Body:      body,
	}, nil
}

// PaymentReleased - подтверждение школе, что выплата отправлена.
func (c *Composer) PaymentReleased(school *models.School, tx *models.SchoolTransaction, currency string) (Message, error) {
	releasedAt := time.Now().UTC()
	if tx.ReleasedAt != nil {
		releasedAt = tx.ReleasedAt.UTC()
	}

	body, err := c.renderer.Render(tplPaymentReleased, email.TemplateData{
		"SchoolName":    school.Name,
		"TransactionID": tx.ID,
		"BookingID":     tx.BookingID,
		"NetAmount":     money(tx.NetAmount, currency),
		"ReleasedAt":    releasedAt.Format(dateTimeLayout),
	})
	if err != nil {
		return Message{}, err
	}
	return Message{
		Recipient: school.Email,
		Subject:   fmt.Sprintf("[PAYMENT CONFIRMATION] Payment sent for transaction %s", tx.ID),
		Body:      body,
	}, nil
}

// BookingConfirmed - письма путешественнику и школе после подтверждения оплаты.
// Письма без адреса получателя пропускаются.
func (c *Composer) BookingConfirmed(b *models.Booking, school *models.School) ([]Message, error) {
	data := email.TemplateData{
		"BookingID":     b.ID,
		"TravelerName":  b.TravelerName,
		"TravelerEmail": b.TravelerEmail,
		"Activity":      b.ActivityName,
		"SchoolName":    school.Name,
		"SessionDate":   formatDate(b.SessionDate),
		"Amount":        money(b.Amount, b.Currency),
	}

	var out []Message
	if b.TravelerEmail != "" {
		body, err := c.renderer.Render(tplConfirmedTraveler, data)
		if err != nil {
			return nil, err
		}
		out = append(out, Message{Recipient: b.TravelerEmail, Subject: "Booking Confirmation - The Travel Wild", Body: body})
	}
	if school.Email != "" {
		body, err := c.renderer.Render(tplConfirmedSchool, data)
		if err != nil {
			return nil, err
		}
		out = append(out, Message{Recipient: school.Email, Subject: "New Booking Received - The Travel Wild", Body: body})
	}
	return out, nil
}

func formatDate(d *time.Time) string {
	if d == nil {
		return noDate
	}
	return d.Format(dateLayout)
}

func money(v decimal.Decimal, currency string) string {
	if currency == "" {
		currency = "EUR"
	}
	return v.StringFixed(2) + " " + currency
}
