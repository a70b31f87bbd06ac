package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"travelwild_backend/internal/events"
	"travelwild_backend/internal/finance"
	"travelwild_backend/internal/logger"
	"travelwild_backend/internal/models"
	"travelwild_backend/internal/notifications"
	"travelwild_backend/internal/repositories"
	"travelwild_backend/internal/services/dto"
	"travelwild_backend/internal/storage"
	"travelwild_backend/pkg/apperrors"
)

type FinanceService interface {
	GetSchoolSummary(ctx context.Context, db *gorm.DB, schoolID string) (*dto.FinanceSummaryResponse, error)
	ListSchoolTransactions(ctx context.Context, db *gorm.DB, schoolID string, query *dto.TransactionListQuery) (*dto.TransactionListResponse, error)
	// ReleaseTransaction отмечает выплату школе проведённой. Повторный вызов ничего не меняет.
	ReleaseTransaction(ctx context.Context, db *gorm.DB, adminID, transactionID string) (*dto.ReleaseResponse, error)
}

type financeService struct {
	transactionRepo repositories.TransactionRepository
	bookingRepo     repositories.BookingRepository
	schoolRepo      repositories.SchoolRepository
	fees            *finance.FeeTable
	currency        string
	composer        *notifications.Composer
	mailer          notifications.Mailer
	publisher       events.Publisher
	// archive - nil, если хранилище выписок не настроено
	archive         storage.Storage
	now             func() time.Time
}

func NewFinanceService(
	transactionRepo repositories.TransactionRepository,
	bookingRepo repositories.BookingRepository,
	schoolRepo repositories.SchoolRepository,
	fees *finance.FeeTable,
	currency string,
	composer *notifications.Composer,
	mailer notifications.Mailer,
	publisher events.Publisher,
	archive storage.Storage,
) FinanceService {
	return &financeService{
		transactionRepo: transactionRepo,
		bookingRepo:     bookingRepo,
		schoolRepo:      schoolRepo,
		fees:            fees,
		currency:        currency,
		composer:        composer,
		mailer:          mailer,
		publisher:       publisher,
		archive:         archive,
		now:             time.Now,
	}
}

func (s *financeService) GetSchoolSummary(ctx context.Context, db *gorm.DB, schoolID string) (*dto.FinanceSummaryResponse, error) {
	if _, err := s.schoolRepo.FindByID(db, schoolID); err != nil {
		return nil, handleSchoolLookupError(err)
	}
	fin, err := s.schoolRepo.GetOrCreateFinance(db, schoolID)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	totals, err := s.transactionRepo.TotalsBySchool(db, schoolID)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	return &dto.FinanceSummaryResponse{
		SchoolID:         schoolID,
		Plan:             string(fin.Plan),
		FeePercent:       finance.FeePercent(s.fees.Rate(fin.Plan)),
		Currency:         s.currency,
		TransactionCount: totals.Count,
		GrossTotal:       totals.Gross,
		FeesTotal:        totals.Fees,
		NetTotal:         totals.Net,
		ReleasedNet:      totals.ReleasedNet,
		PendingNet:       totals.Net.Sub(totals.ReleasedNet),
	}, nil
}

func (s *financeService) ListSchoolTransactions(ctx context.Context, db *gorm.DB, schoolID string, query *dto.TransactionListQuery) (*dto.TransactionListResponse, error) {
	page, pageSize := query.Page, query.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	items, total, err := s.transactionRepo.ListBySchool(db, schoolID, query.Released, page, pageSize)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	resp := &dto.TransactionListResponse{
		Transactions: make([]*dto.TransactionResponse, 0, len(items)),
		Total:        total,
		Page:         page,
		PageSize:     pageSize,
		TotalPages:   int((total + int64(pageSize) - 1) / int64(pageSize)),
	}
	for i := range items {
		resp.Transactions = append(resp.Transactions, toTransactionResponse(&items[i]))
	}
	return resp, nil
}

func (s *financeService) ReleaseTransaction(ctx context.Context, db *gorm.DB, adminID, transactionID string) (*dto.ReleaseResponse, error) {
	tx := db.Begin()
	if tx.Error != nil {
		return nil, apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	// Порядок блокировок как у расчёта и исправления итога: сначала бронирование.
	record, err := s.transactionRepo.FindByID(tx, transactionID)
	if err != nil {
		return nil, handleTransactionLookupError(err)
	}
	b, err := s.bookingRepo.LockForUpdate(tx, record.BookingID)
	if err != nil {
		return nil, handleBookingLookupError(err)
	}
	record, err = s.transactionRepo.LockByID(tx, transactionID)
	if err != nil {
		return nil, handleTransactionLookupError(err)
	}
	if record.IsReleased {
		if err := tx.Commit().Error; err != nil {
			return nil, apperrors.DatabaseError(err)
		}
		return &dto.ReleaseResponse{Transaction: toTransactionResponse(record), AlreadyReleased: true}, nil
	}

	// Бронирование замораживается, только когда выплачена его последняя запись журнала:
	// записи, заменённые исправлением итога, не оплачиваются.
	latest, err := s.transactionRepo.FindLatestByBooking(tx, record.BookingID)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	frozen := latest.ID == record.ID
	if frozen && !b.PayoutNotificationSent {
		// итог исправлен, а новая запись ещё не создана: эта запись вот-вот устареет
		return nil, apperrors.ErrSettlementPending
	}

	now := s.now()
	if _, err := s.transactionRepo.MarkReleased(tx, record.ID, now); err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	record.IsReleased = true
	record.ReleasedAt = &now

	if frozen {
		if err := s.bookingRepo.SetPayoutReleased(tx, record.BookingID); err != nil {
			return nil, apperrors.DatabaseError(err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	logger.CtxInfo(ctx, "Transaction payout released",
		"transaction_id", record.ID,
		"booking_id", record.BookingID,
		"admin_id", adminID,
		"booking_frozen", frozen,
	)

	resp := &dto.ReleaseResponse{
		Transaction:           toTransactionResponse(record),
		BookingPayoutReleased: frozen,
	}
	msg, err := s.releaseMessage(ctx, db, record)
	if err != nil {
		resp.NotificationError = err.Error()
	} else {
		resp.StatementURL = s.archiveStatement(ctx, record, msg)
		if err := s.mailer.Send(ctx, msg.Recipient, msg.Subject, msg.Body); err != nil {
			logger.CtxWithError(ctx, "Failed to send release email", err, "transaction_id", record.ID)
			resp.NotificationError = err.Error()
		} else {
			resp.NotificationSent = true
		}
	}

	events.PublishBestEffort(ctx, s.publisher, events.TransactionReleased, map[string]any{
		"transaction_id": record.ID,
		"booking_id":     record.BookingID,
		"school_id":      record.SchoolID,
		"net_amount":     record.NetAmount.String(),
	})
	return resp, nil
}

func handleTransactionLookupError(err error) error {
	if errors.Is(err, repositories.ErrTransactionNotFound) {
		return apperrors.ErrNotFound(err, "transaction")
	}
	return apperrors.DatabaseError(err)
}

func (s *financeService) releaseMessage(ctx context.Context, db *gorm.DB, record *models.SchoolTransaction) (notifications.Message, error) {
	school, err := s.schoolRepo.FindByID(db, record.SchoolID)
	if err != nil {
		logger.CtxWithError(ctx, "Release email skipped, school lookup failed", err, "transaction_id", record.ID)
		return notifications.Message{}, err
	}
	msg, err := s.composer.PaymentReleased(school, record, s.currency)
	if err != nil {
		logger.CtxWithError(ctx, "Failed to compose release email", err, "transaction_id", record.ID)
		return notifications.Message{}, err
	}
	return msg, nil
}

// archiveStatement сохраняет текст подтверждения выплаты как выписку школы.
// Ошибка хранилища не отменяет выплату: возвращается пустая ссылка.
func (s *financeService) archiveStatement(ctx context.Context, record *models.SchoolTransaction, msg notifications.Message) string {
	if s.archive == nil {
		return ""
	}

	key := fmt.Sprintf("remittances/%s/%s.txt", record.SchoolID, record.ID)
	if err := s.archive.Save(ctx, key, strings.NewReader(msg.Body), "text/plain; charset=utf-8"); err != nil {
		logger.CtxWithError(ctx, "Failed to archive remittance statement", err, "transaction_id", record.ID, "key", key)
		return ""
	}
	url, err := s.archive.GetURL(ctx, key)
	if err != nil {
		logger.CtxWithError(ctx, "Failed to build statement url", err, "key", key)
		return ""
	}
	return url
}
