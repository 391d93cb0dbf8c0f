package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hrstack/authhub/internal/authz"
)

// RequirePermission gates a route on the static role/permission table.
// Identity must already be on the context (RequireAuth runs first).
func (m *AuthMiddleware) RequirePermission(required authz.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := RoleFromContext(c)

		if !ok || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Missing identity context",
				},
			})
			return
		}

		if !authz.Allowed(role, required) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":    "forbidden",
					"message": "Insufficient permissions",
				},
			})
			return
		}

		c.Next()
	}
}

// RequirePermissionOrSelf is like RequirePermission but also admits a caller
// acting on their own record, identified by the named path parameter.
func (m *AuthMiddleware) RequirePermissionOrSelf(required authz.Permission, emailParam string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := RoleFromContext(c)

		if !ok || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Missing identity context",
				},
			})
			return
		}

		if authz.Allowed(role, required) {
			c.Next()
			return
		}

		email, _ := EmailFromContext(c)

		if authz.Self(email, c.Param(emailParam)) {
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error": gin.H{
				"code":    "forbidden",
				"message": "Insufficient permissions",
			},
		})
	}
}
