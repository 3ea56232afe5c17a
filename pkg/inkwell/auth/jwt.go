package auth

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/inkwell-blog/inkwell/pkg/inkwell/models"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

const (
	defaultSecret   = "inkwell-dev-secret-change-in-production"
	defaultTokenTTL = 24 * time.Hour
	issuer          = "inkwell"
)

var (
	settingsMu sync.RWMutex
	jwtSecret  = []byte(defaultSecret)
	tokenTTL   = defaultTokenTTL
)

// Claims represents the JWT claims
type Claims struct {
	UserID uint          `json:"user_id"`
	Email  string        `json:"email"`
	Role   models.RoleID `json:"role"`
	jwt.RegisteredClaims
}

// Configure sets the signing secret and token lifetime. Empty or zero values
// keep the development defaults.
func Configure(secret string, ttl time.Duration) {
	settingsMu.Lock()
	defer settingsMu.Unlock()

	if secret == "" {
		secret = defaultSecret
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	jwtSecret = []byte(secret)
	tokenTTL = ttl
}

func getJWTSecret() []byte {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return jwtSecret
}

// getTokenDuration returns the token validity duration
func getTokenDuration() time.Duration {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return tokenTTL
}

// GenerateToken creates a new JWT token for a user
func GenerateToken(userID uint, email string, role models.RoleID) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(getTokenDuration())),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(getJWTSecret())
}

// ValidateToken validates a JWT token and returns the claims
func ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return getJWTSecret(), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
