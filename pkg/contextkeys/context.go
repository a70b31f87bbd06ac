package contextkeys

type contextKey string

// DBContextKey - ключ для *gorm.DB (пул или транзакция) в context
const DBContextKey = contextKey("db")

// Ключи, которые AuthMiddleware кладёт в gin.Context
const (
	UserIDKey   = "userID"
	RoleKey     = "role"
	SchoolIDKey = "schoolID"
)
