package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"travelwild_backend/internal/services"
)

type PublicationHandler struct {
	*BaseHandler
	publicationService services.PublicationService
}

func NewPublicationHandler(base *BaseHandler, publicationService services.PublicationService) *PublicationHandler {
	return &PublicationHandler{
		BaseHandler:        base,
		publicationService: publicationService,
	}
}

func (h *PublicationHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/schools/:schoolId/publication", h.GetPublication)
}

func (h *PublicationHandler) GetPublication(c *gin.Context) {
	resp, err := h.publicationService.GetPublication(c.Request.Context(), h.GetDB(c), c.Param("schoolId"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
