package handlers

import (
	"net/http"

	"resplan/internal/services"

	"github.com/gin-gonic/gin"
)

// ShowClientDetail returns the client together with the projects of that
// client the caller may see.
func (h *Handler) ShowClientDetail(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	client, err := h.svc.Clients.GetClient(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	projects, err := h.svc.Projects.ListProjects(ctx, actor(c), services.ProjectFilter{ClientID: id})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"client":   client,
		"projects": projects,
	})
}
