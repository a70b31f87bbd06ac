package validator

import (
	"log"

	"github.com/go-playground/validator/v10"

	"travelwild_backend/internal/models"
)

// registerCustomRules регистрирует кастомные правила валидации.
func registerCustomRules(v *validator.Validate) {
	mustRegister := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			// без правил приложение запускать нельзя
			log.Fatalf("failed to register custom validation tag '%s': %v", tag, err)
		}
	}

	// completed | partial | no_show
	mustRegister("is-booking-outcome", validateBookingOutcome)
	mustRegister("is-school-plan", validateSchoolPlan)
	mustRegister("is-payment-status", validatePaymentStatus)
}

func validateBookingOutcome(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // пустые значения проверяет 'required'
	}
	return models.BookingStatus(value).IsOutcome()
}

func validateSchoolPlan(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return models.SchoolPlan(value).Valid()
}

func validatePaymentStatus(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return models.PaymentStatus(value).Valid()
}
