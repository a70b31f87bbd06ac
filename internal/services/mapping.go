package services

import (
	"errors"

	"travelwild_backend/internal/booking"
	"travelwild_backend/internal/finance"
	"travelwild_backend/internal/models"
	"travelwild_backend/internal/repositories"
	"travelwild_backend/internal/services/dto"
	"travelwild_backend/pkg/apperrors"
)

// mapTransitionError переводит ошибки машины состояний в ответы API.
func mapTransitionError(err error) error {
	var trErr *booking.TransitionError
	switch {
	case errors.Is(err, booking.ErrPayoutReleased):
		return apperrors.ErrBookingFrozen
	case errors.Is(err, booking.ErrActorNotAllowed):
		return apperrors.ErrNotBookingOwner
	case errors.Is(err, booking.ErrAmountMismatch):
		return apperrors.ErrPaymentAmountMismatch
	case errors.As(err, &trErr):
		return apperrors.ErrInvalidTransition(trErr.Error())
	}
	return apperrors.InternalError(err)
}

func handleBookingLookupError(err error) error {
	if errors.Is(err, repositories.ErrBookingNotFound) {
		return apperrors.ErrNotFound(err, "booking")
	}
	return apperrors.DatabaseError(err)
}

func handleSchoolLookupError(err error) error {
	if errors.Is(err, repositories.ErrSchoolNotFound) {
		return apperrors.ErrNotFound(err, "school")
	}
	return apperrors.DatabaseError(err)
}

func toBookingResponse(b *models.Booking) *dto.BookingResponse {
	resp := &dto.BookingResponse{
		ID:                     b.ID,
		UserID:                 b.UserID,
		SchoolID:               b.SchoolID,
		ActivityName:           b.ActivityName,
		Amount:                 b.Amount,
		Currency:               b.Currency,
		Status:                 string(b.Status),
		PaymentStatus:          string(b.PaymentStatus),
		RefundPercent:          b.RefundPercent,
		PartialPercent:         b.PartialPercent,
		PayoutReleased:         b.PayoutReleased,
		PayoutNotificationSent: b.PayoutNotificationSent,
		CanceledAt:             b.CanceledAt,
		UpdatedAt:              b.UpdatedAt,
	}
	if b.SessionDate != nil {
		d := b.SessionDate.Format("2006-01-02")
		resp.SessionDate = &d
	}
	if b.Status == models.BookingStatusCanceled && b.PaymentStatus != models.PaymentStatusUnpaid {
		resp.RefundAmount = finance.RefundAmount(b.Amount, b.RefundPercent)
	}
	return resp
}

func toTransactionResponse(t *models.SchoolTransaction) *dto.TransactionResponse {
	if t == nil {
		return nil
	}
	return &dto.TransactionResponse{
		ID:         t.ID,
		SchoolID:   t.SchoolID,
		BookingID:  t.BookingID,
		Amount:     t.Amount,
		FeePercent: t.FeePercent,
		FeeAmount:  t.FeeAmount,
		NetAmount:  t.NetAmount,
		IsReleased: t.IsReleased,
		ReleasedAt: t.ReleasedAt,
		Reference:  t.ExternalPaymentRef,
		CreatedAt:  t.CreatedAt,
	}
}

func toSettlementResponse(r *SettlementResult) *dto.SettlementResponse {
	if r == nil {
		return nil
	}
	return &dto.SettlementResponse{
		BookingID:         r.BookingID,
		AlreadyNotified:   r.AlreadyNotified,
		Transaction:       toTransactionResponse(r.Transaction),
		NotificationSent:  r.NotificationSent,
		NotificationError: r.NotificationError,
	}
}
