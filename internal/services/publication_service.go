package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"travelwild_backend/internal/events"
	"travelwild_backend/internal/logger"
	"travelwild_backend/internal/models"
	"travelwild_backend/internal/publication"
	"travelwild_backend/internal/repositories"
	"travelwild_backend/internal/services/dto"
	"travelwild_backend/pkg/apperrors"
)

type PublicationService interface {
	// GetPublication считает решение о публикации, ничего не сохраняя в статусе школы.
	GetPublication(ctx context.Context, db *gorm.DB, schoolID string) (*dto.PublicationResponse, error)
	SetVerification(ctx context.Context, db *gorm.DB, adminID, schoolID string, verified bool) (*dto.PublicationResponse, error)
	// Resync пересчитывает решение и сохраняет статус школы. Работает в транзакции
	// вызывающего, событие публикует вызывающий после коммита (Announce).
	Resync(ctx context.Context, db *gorm.DB, schoolID string) (*dto.PublicationResponse, error)
	Announce(ctx context.Context, resp *dto.PublicationResponse)
}

type publicationService struct {
	schoolRepo       repositories.SchoolRepository
	subscriptionRepo repositories.SubscriptionRepository
	publisher        events.Publisher
}

func NewPublicationService(
	schoolRepo repositories.SchoolRepository,
	subscriptionRepo repositories.SubscriptionRepository,
	publisher events.Publisher,
) PublicationService {
	return &publicationService{
		schoolRepo:       schoolRepo,
		subscriptionRepo: subscriptionRepo,
		publisher:        publisher,
	}
}

func (s *publicationService) GetPublication(ctx context.Context, db *gorm.DB, schoolID string) (*dto.PublicationResponse, error) {
	school, err := s.schoolRepo.FindByID(db, schoolID)
	if err != nil {
		return nil, handleSchoolLookupError(err)
	}
	return s.evaluate(db, school)
}

func (s *publicationService) SetVerification(ctx context.Context, db *gorm.DB, adminID, schoolID string, verified bool) (*dto.PublicationResponse, error) {
	tx := db.Begin()
	if tx.Error != nil {
		return nil, apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	if err := s.schoolRepo.SetVerified(tx, schoolID, verified); err != nil {
		return nil, handleSchoolLookupError(err)
	}
	resp, err := s.Resync(ctx, tx, schoolID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	logger.CtxInfo(ctx, "School verification changed",
		"school_id", schoolID,
		"verified", verified,
		"admin_id", adminID,
		"school_status", resp.SchoolStatus,
	)
	s.Announce(ctx, resp)
	return resp, nil
}

func (s *publicationService) Resync(ctx context.Context, db *gorm.DB, schoolID string) (*dto.PublicationResponse, error) {
	school, err := s.schoolRepo.FindByID(db, schoolID)
	if err != nil {
		return nil, handleSchoolLookupError(err)
	}
	resp, err := s.evaluate(db, school)
	if err != nil {
		return nil, err
	}

	target := models.SchoolStatus(resp.SchoolStatus)
	if school.Status != target {
		if err := s.schoolRepo.UpdateStatus(db, school.ID, target); err != nil {
			return nil, apperrors.DatabaseError(err)
		}
		resp.Changed = true
		logger.CtxInfo(ctx, "School status resolved",
			"school_id", school.ID,
			"from", string(school.Status),
			"to", resp.SchoolStatus,
			"reason", resp.Reason,
		)
	}
	return resp, nil
}

func (s *publicationService) Announce(ctx context.Context, resp *dto.PublicationResponse) {
	if resp == nil || !resp.Changed {
		return
	}
	events.PublishBestEffort(ctx, s.publisher, events.SchoolPublicationSync, resp)
}

func (s *publicationService) evaluate(db *gorm.DB, school *models.School) (*dto.PublicationResponse, error) {
	fin, err := s.schoolRepo.GetOrCreateFinance(db, school.ID)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	status, err := s.subscriptionStatus(db, fin)
	if err != nil {
		return nil, err
	}

	decision := publication.Resolve(fin.Plan, status, school.IsVerified)
	return &dto.PublicationResponse{
		SchoolID:           school.ID,
		Plan:               string(fin.Plan),
		SubscriptionStatus: string(status),
		IsVerified:         school.IsVerified,
		Publishable:        decision.Publishable,
		Reason:             string(decision.Reason),
		SchoolStatus:       string(decision.Status),
	}, nil
}

// subscriptionStatus - статус самой свежей подписки школы. Без подписок
// используется флаг из финансовых настроек.
func (s *publicationService) subscriptionStatus(db *gorm.DB, fin *models.SchoolFinance) (models.SubscriptionStatus, error) {
	sub, err := s.subscriptionRepo.FindLatestForSchool(db, fin.SchoolID)
	if err == nil {
		return sub.Status, nil
	}
	if !errors.Is(err, repositories.ErrSubscriptionNotFound) {
		return "", apperrors.DatabaseError(err)
	}
	if fin.SubscriptionActive {
		return models.SubscriptionStatusActive, nil
	}
	return "", nil
}
