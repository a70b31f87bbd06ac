package apperrors

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

// ErrorResponse - стандартный ответ об ошибке
type ErrorResponse struct {
	Error *AppError `json:"error"`
}

// GinErrorHandler - обработчик ошибок для Gin
type GinErrorHandler struct {
	Debug bool
}

// debugMode выставляется из конфига при старте (SetDebug)
var debugMode = true

// SetDebug включает/выключает вывод внутренних сообщений клиенту.
func SetDebug(debug bool) {
	debugMode = debug
}

func (h *GinErrorHandler) HandleGinError(c *gin.Context, err error) {
	appErr, ok := AsAppError(err)
	if !ok {
		appErr = InternalError(err)
	}

	if appErr.HTTPCode >= 500 {
		slog.ErrorContext(c.Request.Context(), "server error",
			"code", appErr.Code,
			"domain", appErr.Domain,
			"error", appErr.Unwrap(),
		)
		if !h.Debug {
			appErr = appErr.WithDetails(nil)
		}
	}

	c.AbortWithStatusJSON(appErr.HTTPCode, ErrorResponse{Error: appErr})
}

func HandleError(c *gin.Context, err error) {
	handler := &GinErrorHandler{Debug: debugMode}
	handler.HandleGinError(c, err)
}

// AsAppError - пытается преобразовать error в *AppError
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
