package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"travelwild_backend/internal/booking"
	"travelwild_backend/internal/events"
	"travelwild_backend/internal/logger"
	"travelwild_backend/internal/models"
	"travelwild_backend/internal/notifications"
	"travelwild_backend/internal/repositories"
	"travelwild_backend/internal/services/dto"
	"travelwild_backend/pkg/apperrors"
)

type BookingService interface {
	GetBooking(ctx context.Context, db *gorm.DB, actor booking.Actor, bookingID string) (*dto.BookingResponse, error)
	CancelBooking(ctx context.Context, db *gorm.DB, actor booking.Actor, bookingID string) (*dto.BookingResponse, error)
	// RecordOutcome проставляет итог занятия и сразу запускает расчёт.
	RecordOutcome(ctx context.Context, db *gorm.DB, actor booking.Actor, bookingID string, req *dto.OutcomeRequest) (*dto.OutcomeResponse, error)
	// CorrectOutcome - исправление итога администратором с повторным расчётом.
	CorrectOutcome(ctx context.Context, db *gorm.DB, actor booking.Actor, bookingID string, req *dto.OutcomeRequest) (*dto.OutcomeResponse, error)
	SettleBooking(ctx context.Context, db *gorm.DB, bookingID string) (*dto.SettlementResponse, error)

	// ApplyPayment и MarkPaymentFailed работают внутри транзакции вызывающего.
	ApplyPayment(ctx context.Context, tx *gorm.DB, p dto.PaymentConfirmation) (*dto.PaymentOutcome, error)
	MarkPaymentFailed(ctx context.Context, tx *gorm.DB, bookingID string) error
	// SendConfirmation рассылает письма о подтверждении, ошибки только логируются.
	SendConfirmation(ctx context.Context, db *gorm.DB, b *models.Booking)
}

type bookingService struct {
	bookingRepo repositories.BookingRepository
	paymentRepo repositories.PaymentRepository
	schoolRepo  repositories.SchoolRepository
	settlement  SettlementService
	composer    *notifications.Composer
	mailer      notifications.Mailer
	publisher   events.Publisher
	now         func() time.Time
}

func NewBookingService(
	bookingRepo repositories.BookingRepository,
	paymentRepo repositories.PaymentRepository,
	schoolRepo repositories.SchoolRepository,
	settlement SettlementService,
	composer *notifications.Composer,
	mailer notifications.Mailer,
	publisher events.Publisher,
) BookingService {
	return &bookingService{
		bookingRepo: bookingRepo,
		paymentRepo: paymentRepo,
		schoolRepo:  schoolRepo,
		settlement:  settlement,
		composer:    composer,
		mailer:      mailer,
		publisher:   publisher,
		now:         time.Now,
	}
}

func (s *bookingService) GetBooking(ctx context.Context, db *gorm.DB, actor booking.Actor, bookingID string) (*dto.BookingResponse, error) {
	b, err := s.bookingRepo.FindByID(db, bookingID)
	if err != nil {
		return nil, handleBookingLookupError(err)
	}
	if !canView(b, actor) {
		return nil, apperrors.NewForbiddenError("You are not allowed to view this booking")
	}
	return toBookingResponse(b), nil
}

func canView(b *models.Booking, actor booking.Actor) bool {
	switch actor.Kind {
	case booking.ActorAdmin, booking.ActorSystem:
		return true
	case booking.ActorTraveler:
		return actor.UserID != "" && actor.UserID == b.UserID
	case booking.ActorSchool:
		return actor.SchoolID != "" && actor.SchoolID == b.SchoolID
	}
	return false
}

func (s *bookingService) CancelBooking(ctx context.Context, db *gorm.DB, actor booking.Actor, bookingID string) (*dto.BookingResponse, error) {
	b, err := s.transition(db, bookingID, func(b *models.Booking, now time.Time) error {
		return booking.Apply(b, actor, booking.Transition{To: models.BookingStatusCanceled}, now)
	})
	if err != nil {
		return nil, err
	}

	logger.CtxInfo(ctx, "Booking canceled",
		"booking_id", b.ID,
		"refund_percent", b.RefundPercent.String(),
	)
	events.PublishBestEffort(ctx, s.publisher, events.BookingCanceled, map[string]any{
		"booking_id":     b.ID,
		"school_id":      b.SchoolID,
		"refund_percent": b.RefundPercent.String(),
	})
	return toBookingResponse(b), nil
}

func (s *bookingService) RecordOutcome(ctx context.Context, db *gorm.DB, actor booking.Actor, bookingID string, req *dto.OutcomeRequest) (*dto.OutcomeResponse, error) {
	tr := booking.Transition{To: models.BookingStatus(req.Status), PartialPercent: req.PartialPercent}
	b, err := s.transition(db, bookingID, func(b *models.Booking, now time.Time) error {
		return booking.Apply(b, actor, tr, now)
	})
	if err != nil {
		return nil, err
	}

	logger.CtxInfo(ctx, "Booking outcome recorded", "booking_id", b.ID, "status", string(b.Status))
	return s.settleAfterOutcome(ctx, db, b), nil
}

func (s *bookingService) CorrectOutcome(ctx context.Context, db *gorm.DB, actor booking.Actor, bookingID string, req *dto.OutcomeRequest) (*dto.OutcomeResponse, error) {
	tr := booking.Transition{To: models.BookingStatus(req.Status), PartialPercent: req.PartialPercent}

	tx := db.Begin()
	if tx.Error != nil {
		return nil, apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	b, err := s.bookingRepo.LockForUpdate(tx, bookingID)
	if err != nil {
		return nil, handleBookingLookupError(err)
	}
	previous := b.Status
	if err := booking.Correct(b, actor, tr, s.now()); err != nil {
		return nil, mapTransitionError(err)
	}
	if err := s.bookingRepo.UpdateState(tx, b); err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	// новый итог - новый расчёт
	if err := s.bookingRepo.ResetPayoutNotified(tx, b.ID); err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	b.PayoutNotificationSent = false

	logger.CtxInfo(ctx, "Booking outcome corrected",
		"booking_id", b.ID,
		"from", string(previous),
		"to", string(b.Status),
		"admin_id", actor.UserID,
	)
	return s.settleAfterOutcome(ctx, db, b), nil
}

// settleAfterOutcome запускает расчёт после сохранённого итога. Ошибка расчёта
// не отменяет итог, её видно в ответе.
func (s *bookingService) settleAfterOutcome(ctx context.Context, db *gorm.DB, b *models.Booking) *dto.OutcomeResponse {
	resp := &dto.OutcomeResponse{}

	result, err := s.settlement.Settle(ctx, db, b.ID)
	if err != nil {
		logger.CtxWithError(ctx, "Settlement failed after outcome", err, "booking_id", b.ID)
		resp.SettlementError = err.Error()
	} else {
		resp.Settlement = toSettlementResponse(result)
		b.PayoutNotificationSent = true
	}

	resp.Booking = toBookingResponse(b)
	return resp
}

func (s *bookingService) SettleBooking(ctx context.Context, db *gorm.DB, bookingID string) (*dto.SettlementResponse, error) {
	result, err := s.settlement.Settle(ctx, db, bookingID)
	if err != nil {
		return nil, err
	}
	return toSettlementResponse(result), nil
}

// transition блокирует бронирование, применяет change и сохраняет результат.
func (s *bookingService) transition(db *gorm.DB, bookingID string, change func(*models.Booking, time.Time) error) (*models.Booking, error) {
	tx := db.Begin()
	if tx.Error != nil {
		return nil, apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	b, err := s.bookingRepo.LockForUpdate(tx, bookingID)
	if err != nil {
		return nil, handleBookingLookupError(err)
	}
	if err := change(b, s.now()); err != nil {
		return nil, mapTransitionError(err)
	}
	if err := s.bookingRepo.UpdateState(tx, b); err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return b, nil
}

func (s *bookingService) ApplyPayment(ctx context.Context, tx *gorm.DB, p dto.PaymentConfirmation) (*dto.PaymentOutcome, error) {
	b, err := s.bookingRepo.LockForUpdate(tx, p.BookingID)
	if err != nil {
		return nil, handleBookingLookupError(err)
	}

	// Тот же платёж уже применён другим событием шлюза.
	_, err = s.paymentRepo.FindByExternalRef(tx, p.PaymentRef)
	if err == nil {
		return &dto.PaymentOutcome{Booking: b, AlreadyApplied: true}, nil
	}
	if !errors.Is(err, repositories.ErrPaymentNotFound) {
		return nil, apperrors.DatabaseError(err)
	}

	if p.Currency != "" && !strings.EqualFold(p.Currency, b.Currency) {
		return nil, apperrors.ErrPaymentAmountMismatch
	}
	amount := p.Amount
	tr := booking.Transition{To: models.BookingStatusConfirmed, PaidAmount: &amount}
	if err := booking.Apply(b, booking.System(), tr, s.now()); err != nil {
		return nil, mapTransitionError(err)
	}

	payment := &models.BookingPayment{
		BookingID:          b.ID,
		ExternalPaymentRef: p.PaymentRef,
		Amount:             p.Amount,
		Currency:           b.Currency,
		Status:             models.PaymentStatusPaid,
	}
	if err := s.paymentRepo.Create(tx, payment); err != nil {
		if errors.Is(err, repositories.ErrDuplicatePaymentRef) {
			return nil, apperrors.ErrConflict(err, "payment", "Payment already applied")
		}
		return nil, apperrors.DatabaseError(err)
	}
	if err := s.bookingRepo.UpdateState(tx, b); err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	if err := s.bookingRepo.SetPaymentReference(tx, b.ID, p.PaymentRef); err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	ref := p.PaymentRef
	b.PaymentReference = &ref

	logger.CtxInfo(ctx, "Booking payment confirmed",
		"booking_id", b.ID,
		"payment_ref", p.PaymentRef,
		"amount", p.Amount.String(),
	)
	return &dto.PaymentOutcome{Booking: b}, nil
}

func (s *bookingService) MarkPaymentFailed(ctx context.Context, tx *gorm.DB, bookingID string) error {
	b, err := s.bookingRepo.LockForUpdate(tx, bookingID)
	if err != nil {
		return handleBookingLookupError(err)
	}
	// поздний отказ не должен затереть уже прошедшую оплату
	if b.PaymentStatus == models.PaymentStatusPaid || b.Status.IsTerminal() || b.PayoutReleased {
		logger.CtxInfo(ctx, "Payment failure ignored", "booking_id", b.ID, "status", string(b.Status))
		return nil
	}

	b.PaymentStatus = models.PaymentStatusFailed
	if err := s.bookingRepo.UpdateState(tx, b); err != nil {
		return apperrors.DatabaseError(err)
	}
	logger.CtxWarn(ctx, "Booking payment failed", "booking_id", b.ID)
	return nil
}

func (s *bookingService) SendConfirmation(ctx context.Context, db *gorm.DB, b *models.Booking) {
	school := b.School
	if school == nil {
		var err error
		school, err = s.schoolRepo.FindByID(db, b.SchoolID)
		if err != nil {
			logger.CtxWithError(ctx, "Confirmation emails skipped, school lookup failed", err, "booking_id", b.ID)
			return
		}
	}

	messages, err := s.composer.BookingConfirmed(b, school)
	if err != nil {
		logger.CtxWithError(ctx, "Failed to compose confirmation emails", err, "booking_id", b.ID)
		return
	}
	for _, m := range messages {
		if err := s.mailer.Send(ctx, m.Recipient, m.Subject, m.Body); err != nil {
			logger.CtxWithError(ctx, "Failed to send confirmation email", err, "booking_id", b.ID)
		}
	}

	events.PublishBestEffort(ctx, s.publisher, events.BookingConfirmed, map[string]any{
		"booking_id": b.ID,
		"school_id":  b.SchoolID,
		"amount":     b.Amount.String(),
	})
}
