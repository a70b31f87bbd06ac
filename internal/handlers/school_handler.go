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

// SchoolHandler - финансы школы для её собственного кабинета.
type SchoolHandler struct {
	*BaseHandler
	financeService services.FinanceService
}

func NewSchoolHandler(base *BaseHandler, financeService services.FinanceService) *SchoolHandler {
	return &SchoolHandler{
		BaseHandler:    base,
		financeService: financeService,
	}
}

func (h *SchoolHandler) RegisterRoutes(r *gin.RouterGroup, authMW gin.HandlerFunc) {
	school := r.Group("/school")
	school.Use(authMW, middleware.RoleMiddleware(models.UserRoleSchool), middleware.RequirePermission(auth.PermFinanceRead))
	{
		school.GET("/finance", h.GetFinanceSummary)
		school.GET("/transactions", h.ListTransactions)
	}
}

func (h *SchoolHandler) GetFinanceSummary(c *gin.Context) {
	schoolID, ok := h.GetSchoolID(c)
	if !ok {
		return
	}

	summary, err := h.financeService.GetSchoolSummary(c.Request.Context(), h.GetDB(c), schoolID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *SchoolHandler) ListTransactions(c *gin.Context) {
	schoolID, ok := h.GetSchoolID(c)
	if !ok {
		return
	}

	var query dto.TransactionListQuery
	if !h.BindAndValidate_Query(c, &query) {
		return
	}
	query.Page, query.PageSize = ParsePagination(c)

	list, err := h.financeService.ListSchoolTransactions(c.Request.Context(), h.GetDB(c), schoolID, &query)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
