package handlers

import (
	"travelwild_backend/internal/services"
	"travelwild_backend/internal/validator"
)

// AppHandlers содержит все хэндлеры приложения.
type AppHandlers struct {
	BookingHandler     *BookingHandler
	SchoolHandler      *SchoolHandler
	AdminHandler       *AdminHandler
	PublicationHandler *PublicationHandler
	WebhookHandler     *WebhookHandler
}

func NewAppHandlers(svc *services.ServiceContainer, v *validator.Validator) *AppHandlers {
	base := NewBaseHandler(v)
	return &AppHandlers{
		BookingHandler: NewBookingHandler(base, svc.BookingService),
		SchoolHandler:  NewSchoolHandler(base, svc.FinanceService),
		AdminHandler: NewAdminHandler(base,
			svc.BookingService, svc.FinanceService, svc.PublicationService),
		PublicationHandler: NewPublicationHandler(base, svc.PublicationService),
		WebhookHandler:     NewWebhookHandler(base, svc.WebhookService),
	}
}
