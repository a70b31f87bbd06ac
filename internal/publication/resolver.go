package publication

import (
	"fmt"

	"travelwild_backend/internal/models"
)

// Reason - почему школа (не) может быть опубликована.
type Reason string

const (
	ReasonNoPlan               Reason = "no plan"
	ReasonUnknownPlan          Reason = "unknown plan"
	ReasonBasicActive          Reason = "basic plan active"
	ReasonPaidPlanVerified     Reason = "paid plan active and verified"
	ReasonVerificationRequired Reason = "verification required"
)

func subscriptionReason(status models.SubscriptionStatus) Reason {
	if status == "" {
		status = "missing"
	}
	return Reason(fmt.Sprintf("subscription %s", status))
}

// Decision - результат проверки публикации.
type Decision struct {
	Publishable bool   `json:"publishable"`
	Reason      Reason `json:"reason"`
	// Status - статус школы, который следует из решения.
	Status models.SchoolStatus `json:"status"`
}

// IsPublishable решает, может ли листинг школы быть опубликован.
// Чистая функция: любая комбинация входов даёт ответ, ошибок нет.
//
// planRank == 0 означает отсутствие плана. Basic публикуется при активной подписке
// без верификации, medium и premium дополнительно требуют isVerified.
func IsPublishable(plan models.SchoolPlan, planRank int, subscriptionStatus models.SubscriptionStatus, isVerified bool) (bool, Reason) {
	if plan == "" || planRank <= 0 {
		return false, ReasonNoPlan
	}
	if subscriptionStatus != models.SubscriptionStatusActive {
		return false, subscriptionReason(subscriptionStatus)
	}

	switch plan {
	case models.PlanBasic:
		return true, ReasonBasicActive
	case models.PlanMedium, models.PlanPremium:
		if !isVerified {
			return false, ReasonVerificationRequired
		}
		return true, ReasonPaidPlanVerified
	default:
		return false, ReasonUnknownPlan
	}
}

// SchoolStatusFor переводит решение в статус школы.
// Неверифицированная школа с платным планом и активной подпиской уходит в pending,
// а не в active; всё остальное, что нельзя публиковать, становится inactive.
func SchoolStatusFor(publishable bool, reason Reason) models.SchoolStatus {
	switch {
	case publishable:
		return models.SchoolStatusActive
	case reason == ReasonVerificationRequired:
		return models.SchoolStatusPending
	default:
		return models.SchoolStatusInactive
	}
}

// Resolve - IsPublishable + SchoolStatusFor одним вызовом.
func Resolve(plan models.SchoolPlan, subscriptionStatus models.SubscriptionStatus, isVerified bool) Decision {
	ok, reason := IsPublishable(plan, plan.Rank(), subscriptionStatus, isVerified)
	return Decision{
		Publishable: ok,
		Reason:      reason,
		Status:      SchoolStatusFor(ok, reason),
	}
}
