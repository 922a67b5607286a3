package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// uidKey is the gin context key the middleware stores the verified user
// id under.
const uidKey = "auth.uid"

// UID returns the verified user id for the request, empty when the
// request carried no valid token.
func UID(c *gin.Context) string {
	uid, _ := c.Get(uidKey)
	s, _ := uid.(string)
	return s
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Require rejects requests without a valid bearer token.
func Require(v Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "missing bearer token",
			})
			return
		}
		uid, err := v.Verify(c.Request.Context(), token)
		if err != nil {
			slog.Debug("bearer token rejected", "path", c.FullPath(), "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "invalid bearer token",
			})
			return
		}
		c.Set(uidKey, uid)
		c.Next()
	}
}

// Optional resolves the user id when a token is present but lets
// anonymous requests through. Invalid tokens are treated as anonymous
// rather than rejected; personalization is a bonus, not a gate.
func Optional(v Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if uid, err := v.Verify(c.Request.Context(), token); err == nil {
				c.Set(uidKey, uid)
			}
		}
		c.Next()
	}
}
