package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"travelwild_backend/internal/auth"
	"travelwild_backend/internal/middleware"
	"travelwild_backend/internal/models"
	"travelwild_backend/internal/services"
	"travelwild_backend/internal/services/dto"
)

type AdminHandler struct {
	*BaseHandler
	bookingService     services.BookingService
	financeService     services.FinanceService
	publicationService services.PublicationService
}

func NewAdminHandler(
	base *BaseHandler,
	bookingService services.BookingService,
	financeService services.FinanceService,
	publicationService services.PublicationService,
) *AdminHandler {
	return &AdminHandler{
		BaseHandler:        base,
		bookingService:     bookingService,
		financeService:     financeService,
		publicationService: publicationService,
	}
}

func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup, authMW gin.HandlerFunc) {
	admin := r.Group("/admin")
	admin.Use(authMW, middleware.RoleMiddleware(models.UserRoleAdmin))
	{
		admin.POST("/bookings/:bookingId/outcome", middleware.RequirePermission(auth.PermBookingOutcome), h.RecordOutcome)
		admin.POST("/bookings/:bookingId/correct", middleware.RequirePermission(auth.PermBookingCorrect), h.CorrectOutcome)
		admin.POST("/bookings/:bookingId/settle", middleware.RequirePermission(auth.PermBookingCorrect), h.SettleBooking)
		admin.POST("/transactions/:transactionId/release", middleware.RequirePermission(auth.PermTransactionRelease), h.ReleaseTransaction)
		admin.PUT("/schools/:schoolId/verification", middleware.RequirePermission(auth.PermSchoolVerify), h.SetVerification)
	}
}

func (h *AdminHandler) RecordOutcome(c *gin.Context) {
	actor, ok := h.GetActor(c)
	if !ok {
		return
	}
	var req dto.OutcomeRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	resp, err := h.bookingService.RecordOutcome(c.Request.Context(), h.GetDB(c), actor, c.Param("bookingId"), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AdminHandler) CorrectOutcome(c *gin.Context) {
	actor, ok := h.GetActor(c)
	if !ok {
		return
	}
	var req dto.OutcomeRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	resp, err := h.bookingService.CorrectOutcome(c.Request.Context(), h.GetDB(c), actor, c.Param("bookingId"), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SettleBooking - повтор расчёта, если он не прошёл вместе с итогом.
func (h *AdminHandler) SettleBooking(c *gin.Context) {
	resp, err := h.bookingService.SettleBooking(c.Request.Context(), h.GetDB(c), c.Param("bookingId"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AdminHandler) ReleaseTransaction(c *gin.Context) {
	adminID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	resp, err := h.financeService.ReleaseTransaction(c.Request.Context(), h.GetDB(c), adminID, c.Param("transactionId"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AdminHandler) SetVerification(c *gin.Context) {
	adminID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	var req dto.VerificationRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	resp, err := h.publicationService.SetVerification(c.Request.Context(), h.GetDB(c), adminID, c.Param("schoolId"), *req.IsVerified)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
