package middleware

import (
	"net/http"
	"strings"

	"screw/services"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware verifies the access token from the token cookie or
// the Authorization header and stores the player identity on the
// request context.
func AuthMiddleware(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			c.Abort()
			return
		}

		playerID, name, err := authService.VerifyToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set("player_id", playerID)
		c.Set("player_name", name)
		c.Next()
	}
}

// NotLoggedIn blocks requests that already carry a valid credential,
// e.g. registering while logged in.
func NotLoggedIn(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token != "" {
			if _, _, err := authService.VerifyToken(token); err == nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Already logged in"})
				c.Abort()
				return
			}
		}
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	if cookie, err := c.Cookie("token"); err == nil && cookie != "" {
		return cookie
	}
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
