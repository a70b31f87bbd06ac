package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"travelwild_backend/internal/logger"
	"travelwild_backend/internal/models"
	"travelwild_backend/internal/repositories"
	"travelwild_backend/internal/services/dto"
	"travelwild_backend/pkg/apperrors"
)

type SubscriptionService interface {
	// ApplyGatewayUpdate сохраняет подписку из события шлюза и пересчитывает публикацию.
	// Работает в транзакции вызывающего.
	ApplyGatewayUpdate(ctx context.Context, tx *gorm.DB, u dto.SubscriptionUpdate) (*dto.PublicationResponse, error)
	// ProcessExpiredSubscriptions отменяет активные подписки с прошедшим ends_at.
	ProcessExpiredSubscriptions(ctx context.Context, db *gorm.DB, limit int) (int, error)
}

type subscriptionService struct {
	subscriptionRepo repositories.SubscriptionRepository
	schoolRepo       repositories.SchoolRepository
	publication      PublicationService
	now              func() time.Time
}

func NewSubscriptionService(
	subscriptionRepo repositories.SubscriptionRepository,
	schoolRepo repositories.SchoolRepository,
	publication PublicationService,
) SubscriptionService {
	return &subscriptionService{
		subscriptionRepo: subscriptionRepo,
		schoolRepo:       schoolRepo,
		publication:      publication,
		now:              time.Now,
	}
}

// MapGatewayStatus переводит статус подписки шлюза в локальный.
// canceled без удаления подписки не считается отменой: остаётся прежний статус.
func MapGatewayStatus(gatewayStatus string, deleted bool, previous models.SubscriptionStatus) models.SubscriptionStatus {
	if deleted {
		return models.SubscriptionStatusCanceled
	}
	switch strings.ToLower(gatewayStatus) {
	case "active", "trialing":
		return models.SubscriptionStatusActive
	case "past_due", "unpaid":
		return models.SubscriptionStatusPastDue
	case "canceled":
		if previous != "" {
			return previous
		}
		return models.SubscriptionStatusPending
	}
	return models.SubscriptionStatusPending
}

func (s *subscriptionService) ApplyGatewayUpdate(ctx context.Context, tx *gorm.DB, u dto.SubscriptionUpdate) (*dto.PublicationResponse, error) {
	if u.SchoolID == "" || u.ExternalID == "" {
		return nil, apperrors.ErrInvalidOperation("subscription", "subscription event has no school or subscription id")
	}
	if _, err := s.schoolRepo.FindByID(tx, u.SchoolID); err != nil {
		return nil, handleSchoolLookupError(err)
	}

	var previous models.SubscriptionStatus
	existing, err := s.subscriptionRepo.FindByExternalID(tx, u.ExternalID)
	switch {
	case err == nil:
		previous = existing.Status
	case !errors.Is(err, repositories.ErrSubscriptionNotFound):
		return nil, apperrors.DatabaseError(err)
	}
	status := MapGatewayStatus(u.GatewayStatus, u.Deleted, previous)

	plan := models.SchoolPlan(u.Plan)
	if !plan.Valid() {
		plan = models.PlanBasic
	}
	startsAt := s.now().UTC()
	if u.PeriodStart != nil {
		startsAt = *u.PeriodStart
	}
	// без конца периода подписка считается годовой
	endsAt := startsAt.AddDate(1, 0, 0)
	if u.PeriodEnd != nil {
		endsAt = *u.PeriodEnd
	}

	// у школы только одна активная подписка
	if status == models.SubscriptionStatusActive {
		canceled, err := s.subscriptionRepo.CancelOtherActive(tx, u.SchoolID, u.ExternalID)
		if err != nil {
			return nil, apperrors.DatabaseError(err)
		}
		if canceled > 0 {
			logger.CtxInfo(ctx, "Replaced active subscriptions", "school_id", u.SchoolID, "canceled", canceled)
		}
	}

	sub := &models.SchoolSubscription{
		SchoolID:               u.SchoolID,
		Plan:                   plan,
		Status:                 status,
		StartsAt:               &startsAt,
		EndsAt:                 &endsAt,
		ExternalCustomerID:     u.CustomerID,
		ExternalSubscriptionID: u.ExternalID,
	}
	if err := s.subscriptionRepo.Upsert(tx, sub); err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	if err := s.syncFinance(tx, sub); err != nil {
		return nil, err
	}

	logger.CtxInfo(ctx, "School subscription updated",
		"school_id", u.SchoolID,
		"subscription_id", u.ExternalID,
		"plan", string(plan),
		"status", string(status),
		"gateway_status", u.GatewayStatus,
	)
	return s.publication.Resync(ctx, tx, u.SchoolID)
}

// syncFinance переносит подписку в финансовые настройки школы. Изменения
// старой подписки не затирают более свежую.
func (s *subscriptionService) syncFinance(tx *gorm.DB, sub *models.SchoolSubscription) error {
	if sub.Status != models.SubscriptionStatusActive {
		latest, err := s.subscriptionRepo.FindLatestForSchool(tx, sub.SchoolID)
		if err != nil && !errors.Is(err, repositories.ErrSubscriptionNotFound) {
			return apperrors.DatabaseError(err)
		}
		if latest != nil && latest.ExternalSubscriptionID != sub.ExternalSubscriptionID {
			return nil
		}
	}

	fin, err := s.schoolRepo.GetOrCreateFinance(tx, sub.SchoolID)
	if err != nil {
		return apperrors.DatabaseError(err)
	}
	fin.Plan = sub.Plan
	fin.SubscriptionActive = sub.Status == models.SubscriptionStatusActive
	fin.SubscriptionStart = sub.StartsAt
	fin.SubscriptionEnd = sub.EndsAt
	if sub.ExternalCustomerID != "" {
		customer := sub.ExternalCustomerID
		fin.ExternalAccountID = &customer
	}
	if err := s.schoolRepo.UpdateFinance(tx, fin); err != nil {
		return apperrors.DatabaseError(err)
	}
	return nil
}

func (s *subscriptionService) ProcessExpiredSubscriptions(ctx context.Context, db *gorm.DB, limit int) (int, error) {
	expired, err := s.subscriptionRepo.FindExpired(db, s.now(), limit)
	if err != nil {
		return 0, apperrors.DatabaseError(err)
	}

	processed := 0
	for i := range expired {
		if ctx.Err() != nil {
			break
		}
		if err := s.expire(ctx, db, &expired[i]); err != nil {
			logger.CtxWithError(ctx, "Failed to expire subscription", err,
				"subscription_id", expired[i].ID,
				"school_id", expired[i].SchoolID,
			)
			continue
		}
		processed++
	}
	return processed, nil
}

func (s *subscriptionService) expire(ctx context.Context, db *gorm.DB, sub *models.SchoolSubscription) error {
	tx := db.Begin()
	if tx.Error != nil {
		return apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	if err := s.subscriptionRepo.UpdateStatus(tx, sub.ID, models.SubscriptionStatusCanceled); err != nil {
		return apperrors.DatabaseError(err)
	}
	sub.Status = models.SubscriptionStatusCanceled
	if err := s.syncFinance(tx, sub); err != nil {
		return err
	}
	resp, err := s.publication.Resync(ctx, tx, sub.SchoolID)
	if err != nil {
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return apperrors.DatabaseError(err)
	}

	logger.CtxInfo(ctx, "Subscription expired", "subscription_id", sub.ID, "school_id", sub.SchoolID)
	s.publication.Announce(ctx, resp)
	return nil
}
