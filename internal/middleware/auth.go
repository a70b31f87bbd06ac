package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"travelwild_backend/internal/auth"
	"travelwild_backend/internal/logger"
	"travelwild_backend/internal/models"
	"travelwild_backend/pkg/apperrors"
	"travelwild_backend/pkg/contextkeys"
)

// AuthMiddleware - middleware проверки JWT
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			apperrors.HandleError(c, apperrors.NewUnauthorizedError("Authorization header missing or invalid"))
			return
		}

		claims, err := auth.ParseToken(strings.TrimPrefix(authHeader, "Bearer "), secret)
		if err != nil {
			logger.CtxWarn(c.Request.Context(), "Rejected token", "error", err.Error(), "path", c.Request.URL.Path)
			apperrors.HandleError(c, apperrors.New(apperrors.CodeInvalidToken, "auth", "Invalid token", http.StatusUnauthorized))
			return
		}

		c.Set(contextkeys.UserIDKey, claims.UserID)
		c.Set(contextkeys.RoleKey, models.UserRole(claims.Role))
		if claims.SchoolID != "" {
			c.Set(contextkeys.SchoolIDKey, claims.SchoolID)
		}
		c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), claims.UserID))
		c.Next()
	}
}

// RequireRoles пропускает только перечисленные роли.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	roleSet := make(map[models.UserRole]bool, len(roles))
	for _, r := range roles {
		roleSet[r] = true
	}

	return func(c *gin.Context) {
		role, ok := GetRole(c)
		if !ok {
			apperrors.HandleError(c, apperrors.NewForbiddenError("Access denied: no role"))
			return
		}
		if !roleSet[role] {
			apperrors.HandleError(c, apperrors.NewForbiddenError("Access denied: insufficient role"))
			return
		}
		c.Next()
	}
}

// RoleMiddleware - одна обязательная роль.
func RoleMiddleware(requiredRole models.UserRole) gin.HandlerFunc {
	return RequireRoles(requiredRole)
}

// RequirePermission проверяет разрешение роли по таблице auth.Permissions.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := GetRole(c)
		if !ok || !auth.HasPermission(string(role), permission) {
			logger.CtxWarn(c.Request.Context(), "Permission denied",
				"role", string(role),
				"permission", permission,
				"path", c.Request.URL.Path,
			)
			apperrors.HandleError(c, apperrors.NewForbiddenError("Access denied: missing permission "+permission))
			return
		}
		c.Next()
	}
}

// GetRole достаёт роль, сохранённую AuthMiddleware.
func GetRole(c *gin.Context) (models.UserRole, bool) {
	roleVal, exists := c.Get(contextkeys.RoleKey)
	if !exists {
		return "", false
	}

	switch role := roleVal.(type) {
	case models.UserRole:
		return role, true
	case string:
		return models.UserRole(role), true
	default:
		return "", false
	}
}

// GetUserID извлекает ID пользователя из контекста
func GetUserID(c *gin.Context) string {
	id, _ := c.Get(contextkeys.UserIDKey)
	s, _ := id.(string)
	return s
}

// GetSchoolID - школа из токена, пусто для traveler/admin.
func GetSchoolID(c *gin.Context) string {
	id, _ := c.Get(contextkeys.SchoolIDKey)
	s, _ := id.(string)
	return s
}
