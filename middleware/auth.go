package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"stock-trader/auth"
	"stock-trader/models"
)

const (
	UserIDKey = "user_id"
	RoleKey   = "role"
)

// JWTAuth requires a valid bearer token and stores the caller's user ID and
// role in the gin context.
func JWTAuth(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authorized, no token"})
			return
		}

		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		claims, err := tokens.Parse(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authorized, token failed"})
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(RoleKey, claims.Role)
		c.Next()
	}
}

// AdminOnly must run after JWTAuth.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(RoleKey) != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Not authorized as an admin"})
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user's ID set by JWTAuth.
func UserID(c *gin.Context) uint {
	return c.MustGet(UserIDKey).(uint)
}
