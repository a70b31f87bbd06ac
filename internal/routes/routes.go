package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"travelwild_backend/internal/handlers"
	"travelwild_backend/internal/logger"
	"travelwild_backend/internal/middleware"
)

// RegisterRoutes регистрирует все HTTP маршруты.
func RegisterRoutes(
	ginRouter *gin.Engine,
	appHandlers *handlers.AppHandlers,
	jwtSecret string,
) {
	ginRouter.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authMW := middleware.AuthMiddleware(jwtSecret)

	api := ginRouter.Group("/api/v1")
	{
		appHandlers.BookingHandler.RegisterRoutes(api, authMW)
		appHandlers.SchoolHandler.RegisterRoutes(api, authMW)
		appHandlers.AdminHandler.RegisterRoutes(api, authMW)
		appHandlers.PublicationHandler.RegisterRoutes(api)
		appHandlers.WebhookHandler.RegisterRoutes(api)
	}
	logger.Info("HTTP routes registered", "routes", len(ginRouter.Routes()))
}
