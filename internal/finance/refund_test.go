package finance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRefundPercent(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	day := func(offset int) *time.Time {
		v := time.Date(2026, 3, 10+offset, 0, 0, 0, 0, time.UTC)
		return &v
	}

	tests := []struct {
		name    string
		session *time.Time
		want    string
	}{
		{"two days ahead", day(2), "100"},
		{"a week ahead", day(7), "100"},
		{"tomorrow gets nothing", day(1), "0"},
		{"same day", day(0), "40"},
		{"yesterday", day(-1), "0"},
		{"no session date", nil, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RefundPercent(tt.session, now)
			assert.True(t, got.Equal(d(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestDaysUntil_IgnoresTimeOfDayAndZone(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	now := time.Date(2026, 3, 29, 23, 59, 0, 0, loc)
	session := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 2, DaysUntil(session, now))
}

func TestRefundAmount(t *testing.T) {
	assert.True(t, RefundAmount(d("99.99"), d("40")).Equal(d("40.00")))
	assert.True(t, RefundAmount(d("120.00"), d("100")).Equal(d("120.00")))
	assert.True(t, RefundAmount(d("120.00"), d("0")).IsZero())
}
