package middleware

import (
	"net/http"

	"resplan/internal/policy"

	"github.com/gin-gonic/gin"
)

func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Next()
	}
}

// RequireRole admits users holding any of roles. Services repeat the check;
// this only short-circuits whole route groups.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !policy.HasAnyRole(CurrentUser(c), roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}
		c.Next()
	}
}
