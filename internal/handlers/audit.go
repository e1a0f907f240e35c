package handlers

import (
	"net/http"
	"strconv"

	"resplan/internal/database"

	"github.com/gin-gonic/gin"
)

// ListAuditLogs supports ?entity=, ?entity_id= and ?limit=.
func (h *Handler) ListAuditLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	logs, err := database.ListAuditLogs(c.Request.Context(), h.db, database.AuditFilter{
		Entity:   c.Query("entity"),
		EntityID: queryUint(c, "entity_id"),
		Limit:    limit,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}
