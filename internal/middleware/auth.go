package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chat-app/internal/auth"
	"chat-app/internal/models"
	"chat-app/internal/repositories"
)

// Context keys populated by Auth.
const (
	UserKey   = "user"
	UserIDKey = "userID"
)

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Verify(token string) (int, error)
}

// Auth validates the session token and attaches the resolved user to the
// request context. Clients send the token either as `Authorization: Bearer`
// or in a bare `token` header.
func Auth(tokens TokenVerifier, users repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			abortUnauthorized(c, "no token provided")
			return
		}

		userID, err := tokens.Verify(token)
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				abortUnauthorized(c, "token expired")
				return
			}
			abortUnauthorized(c, "invalid token")
			return
		}

		user, err := users.GetByID(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) {
				abortUnauthorized(c, "user not found")
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				gin.H{"success": false, "message": "server error"})
			return
		}

		c.Set(UserKey, user)
		c.Set(UserIDKey, user.ID)
		c.Next()
	}
}

// CurrentUser returns the authenticated user attached by Auth.
func CurrentUser(c *gin.Context) (models.User, bool) {
	val, ok := c.Get(UserKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := val.(models.User)
	return user, ok
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}
	return c.GetHeader("token")
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": message})
}
