package handlers

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"travelwild_backend/internal/booking"
	"travelwild_backend/internal/logger"
	"travelwild_backend/internal/middleware"
	"travelwild_backend/internal/models"
	"travelwild_backend/internal/validator"
	"travelwild_backend/pkg/apperrors"
	"travelwild_backend/pkg/contextkeys"
)

// ============================================================================
// 1. Базовая структура обработчика
// ============================================================================

type BaseHandler struct {
	validator *validator.Validator
}

func NewBaseHandler(v *validator.Validator) *BaseHandler {
	return &BaseHandler{
		validator: v,
	}
}

// GetDB извлекает *gorm.DB (пул или транзакцию) из gin.Context.
// Ключ ставит DBMiddleware, без него приложение собрано неверно.
func (h *BaseHandler) GetDB(c *gin.Context) *gorm.DB {
	dbKey := string(contextkeys.DBContextKey)

	val, ok := c.Get(dbKey)
	if !ok {
		logger.CtxError(c.Request.Context(), "critical error: db key not found in context", "key", dbKey)
		panic("critical error: DBMiddleware did not set the db key")
	}

	db, ok := val.(*gorm.DB)
	if !ok {
		logger.CtxError(c.Request.Context(), "critical error: db in context is not *gorm.DB", "key", dbKey, "type", fmt.Sprintf("%T", val))
		panic("critical error: db in context has incorrect type")
	}

	return db
}

// ============================================================================
// 2. Привязка и валидация
// ============================================================================

func (h *BaseHandler) BindAndValidate_JSON(c *gin.Context, obj interface{}) bool {
	ctx := c.Request.Context()

	if err := c.ShouldBindJSON(obj); err != nil {
		logger.CtxWithError(ctx, "Failed to bind JSON body", err, "path", c.Request.URL.Path)
		apperrors.HandleError(c, apperrors.NewBadRequestError("Invalid request body: "+err.Error()))
		return false
	}
	return h.validate(c, obj)
}

func (h *BaseHandler) BindAndValidate_Query(c *gin.Context, obj interface{}) bool {
	ctx := c.Request.Context()

	if err := c.ShouldBindQuery(obj); err != nil {
		logger.CtxWithError(ctx, "Failed to bind query params", err, "path", c.Request.URL.Path)
		apperrors.HandleError(c, apperrors.NewBadRequestError("Invalid query parameters: "+err.Error()))
		return false
	}
	return h.validate(c, obj)
}

func (h *BaseHandler) validate(c *gin.Context, obj interface{}) bool {
	ctx := c.Request.Context()

	err := h.validator.Validate(obj)
	if err == nil {
		return true
	}

	var vErr *validator.ValidationError
	if errors.As(err, &vErr) {
		logger.CtxWarn(ctx, "Validation failed", "errors", vErr.Errors, "path", c.Request.URL.Path)
		apperrors.HandleError(c, apperrors.ValidationError(vErr.Errors))
	} else {
		logger.CtxWithError(ctx, "Internal validator error", err, "path", c.Request.URL.Path)
		apperrors.HandleError(c, apperrors.InternalError(err))
	}
	return false
}

// ============================================================================
// 3. Ошибки
// ============================================================================

func (h *BaseHandler) HandleServiceError(c *gin.Context, err error) {
	ctx := c.Request.Context()

	var appErr *apperrors.AppError
	if apperrors.As(err, &appErr) {
		logger.CtxWarn(ctx, "Service error",
			"error", appErr.Message,
			"code", appErr.Code,
			"details", appErr.Details,
			"path", c.Request.URL.Path,
		)
		apperrors.HandleError(c, appErr)
	} else {
		logger.CtxWithError(ctx, "Internal server error", err, "path", c.Request.URL.Path)
		apperrors.HandleError(c, apperrors.InternalError(err))
	}
}

// ============================================================================
// 4. Кто вызывает
// ============================================================================

func (h *BaseHandler) GetAndAuthorizeUserID(c *gin.Context) (string, bool) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		logger.CtxWarn(c.Request.Context(), "Unauthorized access: userID not found in context",
			"path", c.Request.URL.Path,
			"ip", c.ClientIP(),
		)
		apperrors.HandleError(c, apperrors.NewUnauthorizedError("User not authenticated"))
		return "", false
	}
	return userID, true
}

// GetActor собирает участника перехода из ролей токена.
func (h *BaseHandler) GetActor(c *gin.Context) (booking.Actor, bool) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return booking.Actor{}, false
	}
	role, _ := middleware.GetRole(c)

	actor := booking.Actor{UserID: userID, SchoolID: middleware.GetSchoolID(c)}
	switch role {
	case models.UserRoleAdmin:
		actor.Kind = booking.ActorAdmin
	case models.UserRoleSchool:
		actor.Kind = booking.ActorSchool
	case models.UserRoleTraveler:
		actor.Kind = booking.ActorTraveler
	default:
		apperrors.HandleError(c, apperrors.NewForbiddenError("Unknown role"))
		return booking.Actor{}, false
	}
	return actor, true
}

// GetSchoolID - школа из токена пользователя школы.
func (h *BaseHandler) GetSchoolID(c *gin.Context) (string, bool) {
	schoolID := middleware.GetSchoolID(c)
	if schoolID == "" {
		apperrors.HandleError(c, apperrors.ErrSchoolNotLinked)
		return "", false
	}
	return schoolID, true
}

// ============================================================================
// 5. Парсинг
// ============================================================================

func ParseQueryInt(c *gin.Context, key string, defaultValue int) int {
	valueStr := c.Query(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func ParsePagination(c *gin.Context) (page int, pageSize int) {
	const defaultPage = 1
	const defaultPageSize = 20
	const maxPageSize = 100

	page = ParseQueryInt(c, "page", defaultPage)
	if page <= 0 {
		page = defaultPage
	}

	pageSize = ParseQueryInt(c, "page_size", defaultPageSize)
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	return page, pageSize
}
