package apperrors

import (
	"net/http"
)

// ErrNotFound - фабрика для ошибки "не найдено" (404)
func ErrNotFound(err error, domain string) *AppError {
	return Wrap(err, CodeNotFound, domain, "Resource not found", http.StatusNotFound)
}

// ErrConflict - общая фабрика для конфликтов (409)
func ErrConflict(err error, domain, message string) *AppError {
	return Wrap(err, CodeConflict, domain, message, http.StatusConflict)
}

func ErrInvalidOperation(domain, message string) *AppError {
	return New(CodeInvalidOperation, domain, message, http.StatusBadRequest)
}

func ErrInvalidStatus(domain, message string) *AppError {
	return New(CodeInvalidStatus, domain, message, http.StatusBadRequest)
}

// ErrInvalidTransition - запрошенная смена статуса нарушает правила переходов.
// Сообщение показывается пользователю как есть.
func ErrInvalidTransition(message string) *AppError {
	return New(CodeInvalidTransition, "booking", message, http.StatusBadRequest)
}

// ErrExternalService - сбой внешнего сервиса (почта, платёжный шлюз, брокер)
func ErrExternalService(err error, domain string) *AppError {
	return Wrap(err, CodeExternalServiceError, domain, "External service failure", http.StatusBadGateway)
}

// --- Bookings ---

var ErrBookingFrozen = New(
	CodeBookingFrozen,
	"booking",
	"Payout already released, booking can no longer be changed",
	http.StatusConflict,
)

var ErrNotBookingOwner = New(
	CodeForbidden,
	"booking",
	"You are not allowed to change this booking",
	http.StatusForbidden,
)

// --- Payments & webhooks ---

var ErrPaymentAmountMismatch = New(
	CodeAmountMismatch,
	"payment",
	"Paid amount does not match booking amount",
	http.StatusConflict,
)

var ErrInvalidSignature = New(
	CodeInvalidSignature,
	"webhook",
	"Invalid payload or signature",
	http.StatusBadRequest,
)

// --- Finance ---

var ErrTransactionReleased = New(
	CodeAlreadyReleased,
	"finance",
	"Transaction payout already released",
	http.StatusConflict,
)

var ErrSettlementPending = New(
	CodeConflict,
	"finance",
	"Booking outcome was corrected and is not settled yet, settle the booking first",
	http.StatusConflict,
)

var ErrSchoolNotLinked = New(
	CodeForbidden,
	"school",
	"Account is not linked to a school",
	http.StatusForbidden,
)
