package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"travelwild_backend/internal/cache"
	"travelwild_backend/internal/logger"
	"travelwild_backend/internal/models"
	"travelwild_backend/internal/payments/stripe"
	"travelwild_backend/internal/repositories"
	"travelwild_backend/internal/services/dto"
	"travelwild_backend/pkg/apperrors"
)

// WebhookConfig - настройки приёма событий платёжного шлюза.
type WebhookConfig struct {
	Secret    string
	Tolerance time.Duration
	// ClaimTTL - сколько держится блокировка event id, пока событие обрабатывается.
	ClaimTTL      time.Duration
	PlanByPriceID func(priceID string) (string, bool)
}

type WebhookService interface {
	// HandleStripeEvent проверяет подпись и применяет событие ровно один раз.
	HandleStripeEvent(ctx context.Context, db *gorm.DB, payload []byte, signature string) (*dto.WebhookResponse, error)
}

type webhookService struct {
	cfg           WebhookConfig
	webhookRepo   repositories.WebhookEventRepository
	bookings      BookingService
	subscriptions SubscriptionService
	publication   PublicationService
	locker        cache.Locker
	now           func() time.Time
}

func NewWebhookService(
	cfg WebhookConfig,
	webhookRepo repositories.WebhookEventRepository,
	bookings BookingService,
	subscriptions SubscriptionService,
	publication PublicationService,
	locker cache.Locker,
) WebhookService {
	if locker == nil {
		locker = cache.NoopLocker{}
	}
	return &webhookService{
		cfg:           cfg,
		webhookRepo:   webhookRepo,
		bookings:      bookings,
		subscriptions: subscriptions,
		publication:   publication,
		locker:        locker,
		now:           time.Now,
	}
}

// dispatchResult - итог обработки события и действия после коммита.
type dispatchResult struct {
	status string
	detail string
	after  []func()
}

func ignored(detail string) *dispatchResult {
	return &dispatchResult{status: dto.WebhookIgnored, detail: detail}
}

func (s *webhookService) HandleStripeEvent(ctx context.Context, db *gorm.DB, payload []byte, signature string) (*dto.WebhookResponse, error) {
	event, err := stripe.ConstructEvent(payload, signature, s.cfg.Secret, s.cfg.Tolerance)
	if err != nil {
		if errors.Is(err, stripe.ErrMalformedEvent) {
			return nil, apperrors.NewBadRequestError("Malformed event payload")
		}
		logger.CtxWarn(ctx, "Webhook signature rejected", "error", err.Error())
		return nil, apperrors.ErrInvalidSignature
	}
	ctx = logger.WithCorrelationID(ctx, event.ID)
	resp := &dto.WebhookResponse{EventID: event.ID, Type: event.TypeName()}

	lockKey := "webhook:" + event.ID
	acquired, token, err := s.locker.TryLock(ctx, lockKey, s.cfg.ClaimTTL)
	switch {
	case err != nil:
		// без Redis дубликаты всё равно отсекает уникальный event id
		logger.CtxWithError(ctx, "Webhook claim lock unavailable", err)
	case !acquired:
		return nil, apperrors.ErrConflict(nil, "webhook", "Event is already being processed")
	default:
		defer func() {
			if err := s.locker.Unlock(context.WithoutCancel(ctx), lockKey, token); err != nil {
				logger.CtxWithError(ctx, "Failed to release webhook claim", err)
			}
		}()
	}

	tx := db.Begin()
	if tx.Error != nil {
		return nil, apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	record := &models.WebhookEvent{
		EventID: event.ID,
		Type:    event.TypeName(),
		Payload: datatypes.JSON(payload),
	}
	if err := s.webhookRepo.Create(tx, record); err != nil {
		if errors.Is(err, repositories.ErrDuplicateWebhookEvent) {
			logger.CtxInfo(ctx, "Duplicate webhook event skipped", "event_type", event.Type)
			resp.Status = dto.WebhookDuplicate
			return resp, nil
		}
		return nil, apperrors.DatabaseError(err)
	}

	result, err := s.dispatch(ctx, db, tx, event)
	if err != nil {
		logger.CtxWithError(ctx, "Webhook processing failed", err, "event_type", event.Type)
		return nil, err
	}

	if err := s.webhookRepo.MarkProcessed(tx, event.ID, s.now()); err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	for _, fn := range result.after {
		fn()
	}

	resp.Status = result.status
	resp.Detail = result.detail
	logger.CtxInfo(ctx, "Webhook event handled",
		"event_type", event.Type,
		"status", resp.Status,
		"detail", resp.Detail,
	)
	return resp, nil
}

func (s *webhookService) dispatch(ctx context.Context, db, tx *gorm.DB, event *stripe.Event) (*dispatchResult, error) {
	switch event.TypeName() {
	case stripe.EventPaymentIntentSucceeded:
		return s.handlePaymentSucceeded(ctx, db, tx, event)
	case stripe.EventPaymentIntentFailed:
		return s.handlePaymentFailed(ctx, tx, event)
	case stripe.EventSubscriptionCreated, stripe.EventSubscriptionUpdated, stripe.EventSubscriptionDeleted:
		return s.handleSubscription(ctx, tx, event)
	}
	return ignored("event type is not handled"), nil
}

func (s *webhookService) handlePaymentSucceeded(ctx context.Context, db, tx *gorm.DB, event *stripe.Event) (*dispatchResult, error) {
	pi, err := event.PaymentIntent()
	if err != nil {
		return ignored(err.Error()), nil
	}
	bookingID := pi.BookingID()
	if bookingID == "" {
		return ignored("payment intent has no booking_id"), nil
	}

	outcome, err := s.bookings.ApplyPayment(ctx, tx, dto.PaymentConfirmation{
		BookingID:  bookingID,
		PaymentRef: pi.ID,
		Amount:     pi.PaidAmount(),
		Currency:   pi.CurrencyCode(),
	})
	if err != nil {
		if isRejection(err) {
			logger.CtxWarn(ctx, "Payment not applied to booking",
				"booking_id", bookingID,
				"payment_ref", pi.ID,
				"error", err.Error(),
			)
			return ignored(err.Error()), nil
		}
		return nil, err
	}
	if outcome.AlreadyApplied {
		return &dispatchResult{status: dto.WebhookProcessed, detail: "payment already applied"}, nil
	}

	b := outcome.Booking
	return &dispatchResult{
		status: dto.WebhookProcessed,
		detail: "booking confirmed",
		after: []func(){
			func() { s.bookings.SendConfirmation(ctx, db, b) },
		},
	}, nil
}

func (s *webhookService) handlePaymentFailed(ctx context.Context, tx *gorm.DB, event *stripe.Event) (*dispatchResult, error) {
	pi, err := event.PaymentIntent()
	if err != nil {
		return ignored(err.Error()), nil
	}
	bookingID := pi.BookingID()
	if bookingID == "" {
		return ignored("payment intent has no booking_id"), nil
	}

	if err := s.bookings.MarkPaymentFailed(ctx, tx, bookingID); err != nil {
		if isRejection(err) {
			return ignored(err.Error()), nil
		}
		return nil, err
	}
	logger.CtxInfo(ctx, "Gateway reported payment failure",
		"booking_id", bookingID,
		"reason", pi.FailureMessage(),
	)
	return &dispatchResult{status: dto.WebhookProcessed, detail: "payment marked as failed"}, nil
}

func (s *webhookService) handleSubscription(ctx context.Context, tx *gorm.DB, event *stripe.Event) (*dispatchResult, error) {
	sub, err := event.Subscription()
	if err != nil {
		return ignored(err.Error()), nil
	}

	pub, err := s.subscriptions.ApplyGatewayUpdate(ctx, tx, dto.SubscriptionUpdate{
		ExternalID:    sub.ID,
		CustomerID:    sub.CustomerID(),
		SchoolID:      sub.SchoolID(),
		Plan:          s.resolvePlan(sub),
		GatewayStatus: sub.StatusName(),
		Deleted:       event.TypeName() == stripe.EventSubscriptionDeleted,
		PeriodStart:   sub.PeriodStart(),
		PeriodEnd:     sub.PeriodEnd(),
	})
	if err != nil {
		if isRejection(err) {
			return ignored(err.Error()), nil
		}
		return nil, err
	}

	return &dispatchResult{
		status: dto.WebhookProcessed,
		detail: "school publication " + pub.SchoolStatus,
		after: []func(){
			func() { s.publication.Announce(ctx, pub) },
		},
	}, nil
}

// resolvePlan: план из metadata, затем по price id, иначе basic.
func (s *webhookService) resolvePlan(sub *stripe.Subscription) string {
	if plan := sub.PlanFromMetadata(); models.SchoolPlan(plan).Valid() {
		return plan
	}
	if s.cfg.PlanByPriceID != nil {
		if plan, ok := s.cfg.PlanByPriceID(sub.PriceID()); ok {
			return plan
		}
	}
	return string(models.PlanBasic)
}

// isRejection - бизнес-отказ (4xx). Такое событие фиксируется и не повторяется шлюзом.
func isRejection(err error) bool {
	appErr, ok := apperrors.AsAppError(err)
	return ok && appErr.HTTPCode < http.StatusInternalServerError
}
