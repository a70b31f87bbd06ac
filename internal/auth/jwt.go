package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims - содержимое access токена.
// SchoolID заполнен только у пользователей с ролью school.
type Claims struct {
	UserID   string `json:"sub"`
	Role     string `json:"role"`
	SchoolID string `json:"school_id,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken подписывает HS256 токен. Используется сервисом авторизации и тестами.
func GenerateToken(secret, userID, role, schoolID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Role:     role,
		SchoolID: schoolID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken проверяет подпись и срок действия токена.
func ParseToken(tokenStr, secret string) (*Claims, error) {
	if secret == "" {
		return nil, ErrInvalidToken
	}

	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid || c.UserID == "" {
		return nil, ErrInvalidToken
	}
	if err := ValidateRole(c.Role); err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	return c, nil
}
