package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"travelwild_backend/internal/events"
	"travelwild_backend/internal/finance"
	"travelwild_backend/internal/logger"
	"travelwild_backend/internal/models"
	"travelwild_backend/internal/notifications"
	"travelwild_backend/internal/repositories"
	"travelwild_backend/pkg/apperrors"
)

// SettlementResult - итог расчёта по бронированию.
type SettlementResult struct {
	BookingID       string
	AlreadyNotified bool
	Transaction     *models.SchoolTransaction
	NotificationID  string
	// NotificationSent=false при успешном расчёте значит, что письмо осталось в outbox
	// или его уже забрал воркер.
	NotificationSent  bool
	NotificationError string
}

type SettlementService interface {
	// Settle фиксирует запись журнала и письмо о выплате для бронирования с итогом.
	// Повторный вызов для уже рассчитанного бронирования ничего не меняет.
	Settle(ctx context.Context, db *gorm.DB, bookingID string) (*SettlementResult, error)
	// DeliverPending досылает письма из outbox, возвращает число отправленных и неудачных.
	DeliverPending(ctx context.Context, db *gorm.DB, maxAttempts, limit int) (int, int, error)
}

type settlementService struct {
	bookingRepo      repositories.BookingRepository
	schoolRepo       repositories.SchoolRepository
	transactionRepo  repositories.TransactionRepository
	notificationRepo repositories.PayoutNotificationRepository
	fees             *finance.FeeTable
	composer         *notifications.Composer
	mailer           notifications.Mailer
	publisher        events.Publisher
	now              func() time.Time
}

func NewSettlementService(
	bookingRepo repositories.BookingRepository,
	schoolRepo repositories.SchoolRepository,
	transactionRepo repositories.TransactionRepository,
	notificationRepo repositories.PayoutNotificationRepository,
	fees *finance.FeeTable,
	composer *notifications.Composer,
	mailer notifications.Mailer,
	publisher events.Publisher,
) SettlementService {
	return &settlementService{
		bookingRepo:      bookingRepo,
		schoolRepo:       schoolRepo,
		transactionRepo:  transactionRepo,
		notificationRepo: notificationRepo,
		fees:             fees,
		composer:         composer,
		mailer:           mailer,
		publisher:        publisher,
		now:              time.Now,
	}
}

func (s *settlementService) Settle(ctx context.Context, db *gorm.DB, bookingID string) (*SettlementResult, error) {
	result := &SettlementResult{BookingID: bookingID}
	var notification *models.PayoutNotification

	// db.Transaction, а не db.Begin: при вызове внутри чужой транзакции gorm сделает savepoint.
	err := db.Transaction(func(tx *gorm.DB) error {
		b, err := s.bookingRepo.LockForUpdate(tx, bookingID)
		if err != nil {
			return handleBookingLookupError(err)
		}
		if !b.Status.IsOutcome() {
			return apperrors.ErrInvalidStatus("booking", fmt.Sprintf("booking in status %s cannot be settled", b.Status))
		}
		if b.PayoutReleased {
			return apperrors.ErrBookingFrozen
		}
		if b.PayoutNotificationSent {
			result.AlreadyNotified = true
			return nil
		}

		won, err := s.bookingRepo.MarkPayoutNotified(tx, b.ID)
		if err != nil {
			return apperrors.DatabaseError(err)
		}
		if !won {
			result.AlreadyNotified = true
			return nil
		}

		school, err := s.schoolRepo.FindByID(tx, b.SchoolID)
		if err != nil {
			return handleSchoolLookupError(err)
		}
		fin, err := s.schoolRepo.GetOrCreateFinance(tx, b.SchoolID)
		if err != nil {
			return apperrors.DatabaseError(err)
		}
		split, err := s.fees.Split(fin.Plan, b.Amount)
		if err != nil {
			return apperrors.InternalError(err)
		}

		n, err := s.transactionRepo.CountByBooking(tx, b.ID)
		if err != nil {
			return apperrors.DatabaseError(err)
		}
		record := &models.SchoolTransaction{
			SchoolID:           b.SchoolID,
			BookingID:          b.ID,
			Amount:             split.Amount,
			FeePercent:         split.FeePercent,
			FeeAmount:          split.FeeAmount,
			NetAmount:          split.NetAmount,
			ExternalPaymentRef: settlementReference(b, n+1),
		}
		if err := s.transactionRepo.Create(tx, record); err != nil {
			if errors.Is(err, repositories.ErrDuplicateTransactionRef) {
				return apperrors.ErrConflict(err, "finance", "Settlement for this booking is already recorded")
			}
			return apperrors.DatabaseError(err)
		}

		msg, err := s.composer.PayoutPending(b, school, record)
		if err != nil {
			return apperrors.InternalError(err)
		}
		notification = &models.PayoutNotification{
			BookingID:     b.ID,
			TransactionID: record.ID,
			Recipient:     msg.Recipient,
			Subject:       msg.Subject,
			Body:          msg.Body,
		}
		if err := s.notificationRepo.Create(tx, notification); err != nil {
			return apperrors.DatabaseError(err)
		}

		result.Transaction = record
		result.NotificationID = notification.ID
		return nil
	})
	if err != nil {
		if _, ok := apperrors.AsAppError(err); !ok {
			err = apperrors.DatabaseError(err)
		}
		return nil, err
	}

	if result.AlreadyNotified {
		logger.CtxInfo(ctx, "Booking already settled", "booking_id", bookingID)
		return result, nil
	}

	logger.CtxInfo(ctx, "Booking settled",
		"booking_id", bookingID,
		"transaction_id", result.Transaction.ID,
		"net_amount", result.Transaction.NetAmount.String(),
	)

	sent, err := s.deliver(ctx, db, notification, 1)
	if err != nil {
		result.NotificationError = err.Error()
	}
	result.NotificationSent = sent

	events.PublishBestEffort(ctx, s.publisher, events.BookingSettled, map[string]any{
		"booking_id":     bookingID,
		"school_id":      result.Transaction.SchoolID,
		"transaction_id": result.Transaction.ID,
		"amount":         result.Transaction.Amount.String(),
		"fee_amount":     result.Transaction.FeeAmount.String(),
		"net_amount":     result.Transaction.NetAmount.String(),
	})

	return result, nil
}

func (s *settlementService) DeliverPending(ctx context.Context, db *gorm.DB, maxAttempts, limit int) (int, int, error) {
	pending, err := s.notificationRepo.FindDeliverable(db, maxAttempts, limit, s.now().Add(-notificationClaimLease))
	if err != nil {
		return 0, 0, apperrors.DatabaseError(err)
	}

	sent, failed := 0, 0
	for i := range pending {
		if ctx.Err() != nil {
			break
		}
		ok, err := s.deliver(ctx, db, &pending[i], maxAttempts)
		if err != nil {
			failed++
			continue
		}
		if ok {
			sent++
		}
	}
	return sent, failed, nil
}

// notificationClaimLease - через сколько письмо в sending считается брошенным
// (отправитель упал) и снова доступно воркеру.
const notificationClaimLease = 15 * time.Minute

// deliver забирает письмо из outbox и отправляет его. false без ошибки значит,
// что письмо уже отправляет или отправил кто-то другой.
// Ошибка отправки возвращается, ошибки записи статуса только логируются.
func (s *settlementService) deliver(ctx context.Context, db *gorm.DB, n *models.PayoutNotification, maxAttempts int) (bool, error) {
	now := s.now()
	claimed, err := s.notificationRepo.Claim(db, n.ID, maxAttempts, now, now.Add(-notificationClaimLease))
	if err != nil {
		logger.CtxWithError(ctx, "Failed to claim payout notification", err, "notification_id", n.ID)
		return false, err
	}
	if !claimed {
		logger.CtxDebug(ctx, "Payout notification claimed elsewhere", "notification_id", n.ID)
		return false, nil
	}

	if sendErr := s.mailer.Send(ctx, n.Recipient, n.Subject, n.Body); sendErr != nil {
		logger.CtxWithError(ctx, "Payout notification delivery failed", sendErr,
			"notification_id", n.ID,
			"booking_id", n.BookingID,
			"attempt", n.Attempts+1,
		)
		if err := s.notificationRepo.MarkFailed(db, n.ID, sendErr.Error()); err != nil {
			logger.CtxWithError(ctx, "Failed to record notification failure", err, "notification_id", n.ID)
		}
		return false, sendErr
	}

	if err := s.notificationRepo.MarkSent(db, n.ID, s.now()); err != nil {
		logger.CtxWithError(ctx, "Failed to mark notification as sent", err, "notification_id", n.ID)
	}
	return true, nil
}

// settlementReference - уникальная ссылка записи журнала: ссылка платежа
// (или id бронирования) плюс порядковый номер расчёта.
func settlementReference(b *models.Booking, seq int64) string {
	base := "booking-" + b.ID
	if b.PaymentReference != nil && *b.PaymentReference != "" {
		base = *b.PaymentReference
	}
	return fmt.Sprintf("%s/settlement-%d", base, seq)
}
