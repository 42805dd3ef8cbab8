package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired reports a structurally valid token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid reports a malformed token or a bad signature.
	ErrTokenInvalid = errors.New("invalid token")
)

// TokenService issues and verifies signed session tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

type sessionClaims struct {
	UserID int `json:"userId"`
	jwt.RegisteredClaims
}

// NewTokenService builds a TokenService signing with HS256.
func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: 7 * 24 * time.Hour}
}

// Issue signs a token for the given user id.
func (s *TokenService) Issue(userID int) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "chat-app",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.ttl)),
		},
	})
	return token.SignedString(s.secret)
}

// Verify parses the token and returns the embedded user id.
func (s *TokenService) Verify(tokenString string) (int, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrTokenExpired
		}
		return 0, ErrTokenInvalid
	}
	if !token.Valid || claims.UserID == 0 {
		return 0, ErrTokenInvalid
	}
	return claims.UserID, nil
}
