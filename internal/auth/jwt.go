package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carries the session subject.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

// TokenManager issues and validates HS256 session tokens.
type TokenManager struct {
	secret   []byte
	validity time.Duration
	now      func() time.Time
}

func NewTokenManager(secret string, validity time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), validity: validity, now: time.Now}
}

func (m *TokenManager) GenerateToken(userID string) (string, error) {
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.validity)),
		},
		UserID: userID,
	})
	return token.SignedString(m.secret)
}

// UserIDFromToken validates the token and returns its subject.
func (m *TokenManager) UserIDFromToken(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil {
		return "", errors.Join(ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return "", ErrInvalidToken
	}
	return claims.UserID, nil
}
