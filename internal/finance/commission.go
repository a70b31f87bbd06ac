package finance

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"travelwild_backend/internal/models"
)

var (
	ErrInvalidAmount  = errors.New("amount must be non-negative")
	ErrInvalidFeeRate = errors.New("fee rate must be between 0 and 1")
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// ApplyCommission делит сумму на комиссию платформы и остаток школы.
// fee = round(amount * rate, 2), округление половины от нуля
// (для неотрицательных сумм совпадает с half-up), net = amount - fee.
func ApplyCommission(amount, feeRate decimal.Decimal) (fee, net decimal.Decimal, err error) {
	if amount.IsNegative() {
		return decimal.Zero, decimal.Zero, ErrInvalidAmount
	}
	if feeRate.IsNegative() || feeRate.GreaterThan(one) {
		return decimal.Zero, decimal.Zero, ErrInvalidFeeRate
	}

	fee = amount.Mul(feeRate).Round(2)
	net = amount.Sub(fee)
	return fee, net, nil
}

// FeePercent переводит ставку (0.20) в процент для журнала (20.00).
func FeePercent(rate decimal.Decimal) decimal.Decimal {
	return rate.Mul(hundred).Round(2)
}

// FeeTable - единственный источник ставок комиссии по планам.
type FeeTable struct {
	rates    map[models.SchoolPlan]decimal.Decimal
	fallback decimal.Decimal
}

// DefaultFeeTable: basic 25%, premium 20%, прочие планы 10%.
func DefaultFeeTable() *FeeTable {
	return &FeeTable{
		rates: map[models.SchoolPlan]decimal.Decimal{
			models.PlanBasic:   decimal.RequireFromString("0.25"),
			models.PlanPremium: decimal.RequireFromString("0.20"),
		},
		fallback: decimal.RequireFromString("0.10"),
	}
}

// NewFeeTable разбирает ставки из конфигурации ("basic": "0.25").
func NewFeeTable(rates map[string]string, fallback string) (*FeeTable, error) {
	t := &FeeTable{rates: make(map[models.SchoolPlan]decimal.Decimal, len(rates))}

	for plan, raw := range rates {
		rate, err := parseRate(raw)
		if err != nil {
			return nil, fmt.Errorf("fee rate for plan %q: %w", plan, err)
		}
		t.rates[models.SchoolPlan(strings.ToLower(plan))] = rate
	}

	rate, err := parseRate(fallback)
	if err != nil {
		return nil, fmt.Errorf("default fee rate: %w", err)
	}
	t.fallback = rate

	return t, nil
}

func parseRate(raw string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, err
	}
	if rate.IsNegative() || rate.GreaterThan(one) {
		return decimal.Zero, ErrInvalidFeeRate
	}
	return rate, nil
}

// Rate возвращает ставку плана, для неизвестного плана - ставку по умолчанию.
func (t *FeeTable) Rate(plan models.SchoolPlan) decimal.Decimal {
	if rate, ok := t.rates[plan]; ok {
		return rate
	}
	return t.fallback
}

// Split - результат расчёта комиссии с зафиксированной ставкой.
type Split struct {
	Amount     decimal.Decimal
	FeeRate    decimal.Decimal
	FeePercent decimal.Decimal
	FeeAmount  decimal.Decimal
	NetAmount  decimal.Decimal
}

// Split считает комиссию по ставке плана.
func (t *FeeTable) Split(plan models.SchoolPlan, amount decimal.Decimal) (Split, error) {
	rate := t.Rate(plan)
	fee, net, err := ApplyCommission(amount, rate)
	if err != nil {
		return Split{}, err
	}
	return Split{
		Amount:     amount,
		FeeRate:    rate,
		FeePercent: FeePercent(rate),
		FeeAmount:  fee,
		NetAmount:  net,
	}, nil
}
