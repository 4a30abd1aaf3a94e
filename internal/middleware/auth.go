package middleware

import (
	"net/http"
	"strings"

	"commhub_backend/internal/auth"
	"commhub_backend/pkg/contextkeys"

	"github.com/gin-gonic/gin"
)

const (
	// Context keys set for downstream handlers.
	CtxUserID = "userID"
	CtxOrgID  = "orgID"
)

// AuthMiddleware validates the bearer token and stores the caller identity in
// the gin context.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header missing or invalid"})
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := auth.ParseToken(tokenStr, jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxOrgID, claims.OrganizationID)
		// Also on the request context, for code that does not see gin.
		c.Request = c.Request.WithContext(
			contextkeys.WithIdentity(c.Request.Context(), claims.UserID, claims.OrganizationID))
		c.Next()
	}
}

// UserID extracts the authenticated user id from the gin context.
func UserID(c *gin.Context) string {
	return c.GetString(CtxUserID)
}

// OrgID extracts the authenticated user's organization id.
func OrgID(c *gin.Context) string {
	return c.GetString(CtxOrgID)
}
