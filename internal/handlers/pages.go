package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Index tells the client whether the session is authenticated and which
// roles it carries.
func (h *Handler) Index(c *gin.Context) {
	u := actor(c)
	body := gin.H{"service": "resplan", "authenticated": u != nil}
	if u != nil {
		body["username"] = u.Username
		body["roles"] = u.RoleNames()
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) Health(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
		return
	}
	c.String(http.StatusOK, "ok")
}
