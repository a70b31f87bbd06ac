package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"travelwild_backend/internal/booking"
	"travelwild_backend/internal/cache"
	"travelwild_backend/internal/finance"
	"travelwild_backend/internal/models"
	"travelwild_backend/internal/notifications"
)

const financeTeam = "finance@travelwild.test"

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type harness struct {
	store     *fakeStore
	mailer    *fakeMailer
	publisher *recordingPublisher

	settlement    *settlementService
	bookings      *bookingService
	finance       *financeService
	publication   *publicationService
	subscriptions *subscriptionService
	webhooks      *webhookService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	composer, err := notifications.NewComposer(financeTeam)
	require.NoError(t, err)

	h := &harness{
		store:     newFakeStore(),
		mailer:    &fakeMailer{},
		publisher: &recordingPublisher{},
	}
	now := func() time.Time { return testNow }

	bookingRepo := &fakeBookingRepo{h.store}
	schoolRepo := &fakeSchoolRepo{h.store}
	transactionRepo := &fakeTransactionRepo{h.store}
	subscriptionRepo := &fakeSubscriptionRepo{h.store}

	h.settlement = NewSettlementService(
		bookingRepo, schoolRepo, transactionRepo, &fakeNotificationRepo{h.store},
		finance.DefaultFeeTable(), composer, h.mailer, h.publisher,
	).(*settlementService)
	h.settlement.now = now

	h.bookings = NewBookingService(
		bookingRepo, &fakePaymentRepo{h.store}, schoolRepo, h.settlement,
		composer, h.mailer, h.publisher,
	).(*bookingService)
	h.bookings.now = now

	h.finance = NewFinanceService(
		transactionRepo, bookingRepo, schoolRepo,
		finance.DefaultFeeTable(), "EUR", composer, h.mailer, h.publisher, nil,
	).(*financeService)
	h.finance.now = now

	h.publication = NewPublicationService(schoolRepo, subscriptionRepo, h.publisher).(*publicationService)

	h.subscriptions = NewSubscriptionService(subscriptionRepo, schoolRepo, h.publication).(*subscriptionService)
	h.subscriptions.now = now

	h.webhooks = NewWebhookService(WebhookConfig{
		Secret:    webhookSecret,
		Tolerance: 5 * time.Minute,
		ClaimTTL:  time.Minute,
		PlanByPriceID: func(priceID string) (string, bool) {
			if priceID == "price_premium" {
				return "premium", true
			}
			return "", false
		},
	}, &fakeWebhookRepo{h.store}, h.bookings, h.subscriptions, h.publication, cache.NoopLocker{}).(*webhookService)
	h.webhooks.now = now

	return h
}

// seedOutcome - школа и бронирование с проставленным итогом, ещё не рассчитанное.
func (h *harness) seedOutcome(plan models.SchoolPlan, status models.BookingStatus) *models.Booking {
	h.store.addSchool("s-1", "Wild Surf School", "surf@school.test", plan)
	ref := "pi_1"
	b := &models.Booking{
		BaseModel:        models.BaseModel{ID: "b-1"},
		UserID:           "u-1",
		SchoolID:         "s-1",
		ActivityName:     "Surf lesson",
		TravelerName:     "Ana",
		TravelerEmail:    "ana@traveler.test",
		Amount:           dec("100.00"),
		SessionDate:      datePtr(testNow.AddDate(0, 0, -1)),
		Status:           status,
		PaymentStatus:    models.PaymentStatusPaid,
		PaymentReference: &ref,
	}
	if status == models.BookingStatusPartial {
		p := dec("50")
		b.PartialPercent = &p
	}
	return h.store.addBooking(b)
}

func schoolActor(schoolID string) booking.Actor {
	return booking.Actor{Kind: booking.ActorSchool, UserID: "school-user", SchoolID: schoolID}
}

func travelerActor(userID string) booking.Actor {
	return booking.Actor{Kind: booking.ActorTraveler, UserID: userID}
}

func adminActor() booking.Actor {
	return booking.Actor{Kind: booking.ActorAdmin, UserID: "admin-1"}
}
