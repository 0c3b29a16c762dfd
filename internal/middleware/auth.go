package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"church-portal/internal/config"
)

// Context keys set by AdminAuth.
const (
	AdminIDKey   = "adminID"
	AdminNameKey = "adminName"
)

// AdminAuth admits requests carrying a configured admin token, either as a
// bearer Authorization header or as a token query parameter (websocket
// clients cannot set headers).
func AdminAuth(admins []config.Admin) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := tokenFromRequest(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		admin, ok := matchAdmin(admins, token)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(AdminIDKey, admin.ID)
		c.Set(AdminNameKey, admin.Name)
		c.Next()
	}
}

func tokenFromRequest(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		token := c.Query("token")
		return token, token != ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func matchAdmin(admins []config.Admin, token string) (config.Admin, bool) {
	for _, admin := range admins {
		if admin.Token == "" {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(admin.Token), []byte(token)) == 1 {
			return admin, true
		}
	}
	return config.Admin{}, false
}
