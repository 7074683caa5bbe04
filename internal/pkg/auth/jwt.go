package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/V4T54L/barber-pos/internal/domain"
)

// Claims is the bearer credential. BusinessID scopes every request to one
// tenant.
type Claims struct {
	UserID     string      `json:"userId"`
	BusinessID string      `json:"businessId"`
	Role       domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken signs a credential for a user of a shop.
func GenerateToken(userID, businessID string, role domain.Role, secretKey string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:     userID,
		BusinessID: businessID,
		Role:       role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secretKey))
}

// ValidateToken parses a token and verifies its signature and expiry.
func ValidateToken(tokenString, secretKey string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	if claims.BusinessID == "" {
		return nil, errors.New("token carries no business id")
	}
	return claims, nil
}

// SessionFromToken reads the claims of a token the terminal was handed,
// without verifying the signature. The service verifies it on every call.
func SessionFromToken(tokenString string) (domain.Session, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return domain.Session{}, fmt.Errorf("failed to read token: %w", err)
	}
	if claims.BusinessID == "" {
		return domain.Session{}, errors.New("token carries no business id")
	}
	return domain.Session{
		BusinessID: claims.BusinessID,
		UserID:     claims.UserID,
		Role:       claims.Role,
		Token:      tokenString,
	}, nil
}
