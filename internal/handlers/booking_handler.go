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

type BookingHandler struct {
	*BaseHandler
	bookingService services.BookingService
}

func NewBookingHandler(base *BaseHandler, bookingService services.BookingService) *BookingHandler {
	return &BookingHandler{
		BaseHandler:    base,
		bookingService: bookingService,
	}
}

func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup, authMW gin.HandlerFunc) {
	bookings := r.Group("/bookings")
	bookings.Use(authMW)
	{
		bookings.GET("/:bookingId", middleware.RequirePermission(auth.PermBookingRead), h.GetBooking)
		bookings.POST("/:bookingId/cancel", middleware.RequirePermission(auth.PermBookingCancel), h.CancelBooking)
	}

	school := r.Group("/school/bookings")
	school.Use(authMW, middleware.RoleMiddleware(models.UserRoleSchool))
	{
		school.POST("/:bookingId/outcome", h.RecordOutcome)
	}
}

func (h *BookingHandler) GetBooking(c *gin.Context) {
	actor, ok := h.GetActor(c)
	if !ok {
		return
	}

	resp, err := h.bookingService.GetBooking(c.Request.Context(), h.GetDB(c), actor, c.Param("bookingId"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *BookingHandler) CancelBooking(c *gin.Context) {
	actor, ok := h.GetActor(c)
	if !ok {
		return
	}

	resp, err := h.bookingService.CancelBooking(c.Request.Context(), h.GetDB(c), actor, c.Param("bookingId"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RecordOutcome - школа отмечает итог занятия, расчёт запускается сразу.
func (h *BookingHandler) RecordOutcome(c *gin.Context) {
	actor, ok := h.GetActor(c)
	if !ok {
		return
	}
	if _, ok := h.GetSchoolID(c); !ok {
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
