package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	fullRefund    = decimal.NewFromInt(100)
	sameDayRefund = decimal.NewFromInt(40)
)

// RefundPercent - процент возврата при отмене (0..100).
// delta = дата сессии - сегодня, в календарных днях:
// больше 1 дня - 100, в день сессии - 40, иначе 0. Без даты сессии - 0.
func RefundPercent(sessionDate *time.Time, now time.Time) decimal.Decimal {
	if sessionDate == nil {
		return decimal.Zero
	}

	switch delta := DaysUntil(*sessionDate, now); {
	case delta > 1:
		return fullRefund
	case delta == 0:
		return sameDayRefund
	default:
		return decimal.Zero
	}
}

// RefundAmount - сумма к возврату по проценту.
func RefundAmount(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Div(hundred).Round(2)
}

// DaysUntil считает календарные дни от "сегодня" (дата now в её часовом поясе) до date.
// Обе даты переносятся в UTC, чтобы переход на летнее время не съедал день.
func DaysUntil(date, now time.Time) int {
	d := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int(d.Sub(today).Hours() / 24)
}
