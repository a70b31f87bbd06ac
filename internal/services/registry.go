package services

import (
	"travelwild_backend/internal/cache"
	"travelwild_backend/internal/events"
	"travelwild_backend/internal/finance"
	"travelwild_backend/internal/notifications"
	"travelwild_backend/internal/repositories"
	"travelwild_backend/internal/storage"
)

// ServiceContainer содержит все сервисы приложения.
type ServiceContainer struct {
	BookingService      BookingService
	SettlementService   SettlementService
	FinanceService      FinanceService
	PublicationService  PublicationService
	SubscriptionService SubscriptionService
	WebhookService      WebhookService
}

// Dependencies - внешние зависимости сервисов.
type Dependencies struct {
	Fees      *finance.FeeTable
	Currency  string
	Composer  *notifications.Composer
	Mailer    notifications.Mailer
	Publisher events.Publisher
	Locker    cache.Locker
	// Archive - хранилище выписок о выплатах, может быть nil
	Archive   storage.Storage
	Webhook   WebhookConfig
}

// NewServiceContainer собирает сервисы поверх stateless репозиториев.
func NewServiceContainer(deps Dependencies) *ServiceContainer {
	bookingRepo := repositories.NewBookingRepository()
	paymentRepo := repositories.NewPaymentRepository()
	schoolRepo := repositories.NewSchoolRepository()
	transactionRepo := repositories.NewTransactionRepository()
	subscriptionRepo := repositories.NewSubscriptionRepository()
	notificationRepo := repositories.NewPayoutNotificationRepository()
	webhookRepo := repositories.NewWebhookEventRepository()

	settlement := NewSettlementService(
		bookingRepo, schoolRepo, transactionRepo, notificationRepo,
		deps.Fees, deps.Composer, deps.Mailer, deps.Publisher,
	)
	bookings := NewBookingService(
		bookingRepo, paymentRepo, schoolRepo, settlement,
		deps.Composer, deps.Mailer, deps.Publisher,
	)
	publication := NewPublicationService(schoolRepo, subscriptionRepo, deps.Publisher)
	subscriptions := NewSubscriptionService(subscriptionRepo, schoolRepo, publication)

	return &ServiceContainer{
		BookingService:    bookings,
		SettlementService: settlement,
		FinanceService: NewFinanceService(
			transactionRepo, bookingRepo, schoolRepo,
			deps.Fees, deps.Currency, deps.Composer, deps.Mailer, deps.Publisher, deps.Archive,
		),
		PublicationService:  publication,
		SubscriptionService: subscriptions,
		WebhookService: NewWebhookService(
			deps.Webhook, webhookRepo, bookings, subscriptions, publication, deps.Locker,
		),
	}
}
