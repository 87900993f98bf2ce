package middleware

import (
	"net/http"
	"strings"

	"github.com/ayman-boop/ub-chat/internal/apperr"
	"github.com/ayman-boop/ub-chat/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Context keys for the verified claims. Handlers read them through the
// helpers below rather than c.Get directly.
const (
	ContextKeyUserID = "user_id"
	ContextKeyHandle = "handle"
)

// AuthMiddleware validates the JWT and stores the caller's identity in the
// gin context.
//
// The token comes from "Authorization: Bearer <token>". When allowQuery is
// set, a "token" query parameter is accepted too: browsers cannot attach
// headers to a websocket upgrade.
//
// On failure the chain is aborted with 401 and the handler never runs.
func AuthMiddleware(secret string, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, msg := bearerToken(c, allowQuery)
		if tokenString == "" {
			abortUnauthorized(c, msg)
			return
		}

		claims, err := auth.ParseToken(tokenString, secret)
		if err != nil {
			abortUnauthorized(c, "invalid or expired token")
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyHandle, claims.Handle)
		c.Next()
	}
}

func bearerToken(c *gin.Context, allowQuery bool) (string, string) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if allowQuery {
			if t := c.Query("token"); t != "" {
				return t, ""
			}
		}
		return "", "missing authorization header"
	}

	// "Bearer eyJhbG..." -> ["Bearer", "eyJhbG..."]
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", "invalid authorization format, expected: Bearer <token>"
	}
	return strings.TrimSpace(parts[1]), ""
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{"code": apperr.KindUnauthorized, "message": msg},
	})
}

// GetUserID returns uuid.Nil when the request was not authenticated.
func GetUserID(c *gin.Context) uuid.UUID {
	val, exists := c.Get(ContextKeyUserID)
	if !exists {
		return uuid.Nil
	}
	id, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return id
}

func GetHandle(c *gin.Context) string {
	val, exists := c.Get(ContextKeyHandle)
	if !exists {
		return ""
	}
	handle, ok := val.(string)
	if !ok {
		return ""
	}
	return handle
}
