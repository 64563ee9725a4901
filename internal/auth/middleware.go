package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	ctxUsernameKey = "auth_username"
	ctxRoleKey     = "auth_role"
)

// Middleware rejects requests without a valid bearer token and stores the
// caller identity on the gin context
func Middleware(m *JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := m.Validate(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set(ctxUsernameKey, claims.Username)
		c.Set(ctxRoleKey, claims.Role)
		c.Next()
	}
}

// RequireRole allows only the listed roles through
func RequireRole(roles ...Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get(ctxRoleKey)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
	}
}

// Username returns the authenticated username, empty when unauthenticated
func Username(c *gin.Context) string {
	return c.GetString(ctxUsernameKey)
}
