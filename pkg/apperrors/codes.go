package apperrors

// ErrorCode - тип для кодов ошибок
type ErrorCode string

// Общие коды
const (
	CodeInternalError        ErrorCode = "INTERNAL_ERROR"
	CodeDatabaseError        ErrorCode = "DATABASE_ERROR"
	CodeExternalServiceError ErrorCode = "EXTERNAL_SERVICE_ERROR"

	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeAlreadyExists    ErrorCode = "ALREADY_EXISTS"
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	CodeConflict         ErrorCode = "CONFLICT"
	CodeInvalidStatus    ErrorCode = "INVALID_STATUS"
	CodeInvalidOperation ErrorCode = "INVALID_OPERATION"

	CodeUnauthorized ErrorCode = "UNAUTHORIZED"
	CodeForbidden    ErrorCode = "FORBIDDEN"
	CodeInvalidToken ErrorCode = "INVALID_TOKEN"
)

// Коды бронирований и расчётов
const (
	CodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	CodeBookingFrozen     ErrorCode = "BOOKING_FROZEN"
	CodeAmountMismatch    ErrorCode = "AMOUNT_MISMATCH"
	CodeInvalidSignature  ErrorCode = "INVALID_SIGNATURE"
	CodeAlreadyReleased   ErrorCode = "ALREADY_RELEASED"
)
