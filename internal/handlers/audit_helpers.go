package handlers

import (
	"github.com/gin-gonic/gin"

	"church-portal/internal/middleware"
)

func actorFromContext(c *gin.Context) string {
	if id := c.GetString(middleware.AdminIDKey); id != "" {
		return id
	}
	return c.GetHeader("X-Device-Id")
}
