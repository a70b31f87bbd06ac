package publication

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"travelwild_backend/internal/models"
)

func TestIsPublishable(t *testing.T) {
	tests := []struct {
		name       string
		plan       models.SchoolPlan
		rank       int
		status     models.SubscriptionStatus
		verified   bool
		want       bool
		wantReason Reason
	}{
		{"basic active unverified", models.PlanBasic, 1, models.SubscriptionStatusActive, false, true, ReasonBasicActive},
		{"basic active verified", models.PlanBasic, 1, models.SubscriptionStatusActive, true, true, ReasonBasicActive},
		{"premium active unverified", models.PlanPremium, 3, models.SubscriptionStatusActive, false, false, ReasonVerificationRequired},
		{"premium active verified", models.PlanPremium, 3, models.SubscriptionStatusActive, true, true, ReasonPaidPlanVerified},
		{"medium active unverified", models.PlanMedium, 2, models.SubscriptionStatusActive, false, false, ReasonVerificationRequired},
		{"premium past due", models.PlanPremium, 3, models.SubscriptionStatusPastDue, true, false, "subscription past_due"},
		{"basic canceled", models.PlanBasic, 1, models.SubscriptionStatusCanceled, false, false, "subscription canceled"},
		{"missing subscription", models.PlanBasic, 1, "", false, false, "subscription missing"},
		{"no plan", "", 0, models.SubscriptionStatusActive, true, false, ReasonNoPlan},
		{"zero rank", models.PlanPremium, 0, models.SubscriptionStatusActive, true, false, ReasonNoPlan},
		{"unknown plan", "gold", 4, models.SubscriptionStatusActive, true, false, ReasonUnknownPlan},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := IsPublishable(tt.plan, tt.rank, tt.status, tt.verified)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestIsPublishable_IsTotal(t *testing.T) {
	plans := []models.SchoolPlan{"", models.PlanBasic, models.PlanMedium, models.PlanPremium, "unknown"}
	statuses := []models.SubscriptionStatus{"", models.SubscriptionStatusActive, models.SubscriptionStatusPastDue,
		models.SubscriptionStatusCanceled, models.SubscriptionStatusPending, "weird"}

	for _, plan := range plans {
		for rank := -1; rank <= 4; rank++ {
			for _, status := range statuses {
				for _, verified := range []bool{false, true} {
					assert.NotPanics(t, func() {
						_, reason := IsPublishable(plan, rank, status, verified)
						assert.NotEmpty(t, reason)
					})
				}
			}
		}
	}
}

func TestResolve(t *testing.T) {
	d := Resolve(models.PlanPremium, models.SubscriptionStatusActive, false)
	assert.False(t, d.Publishable)
	assert.Equal(t, models.SchoolStatusPending, d.Status)

	d = Resolve(models.PlanPremium, models.SubscriptionStatusActive, true)
	assert.True(t, d.Publishable)
	assert.Equal(t, models.SchoolStatusActive, d.Status)

	d = Resolve(models.PlanBasic, models.SubscriptionStatusActive, false)
	assert.True(t, d.Publishable)
	assert.Equal(t, models.SchoolStatusActive, d.Status)

	d = Resolve(models.PlanBasic, models.SubscriptionStatusCanceled, true)
	assert.False(t, d.Publishable)
	assert.Equal(t, models.SchoolStatusInactive, d.Status)
}
