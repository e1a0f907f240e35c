package handlers

import (
	"net/http"

	"resplan/internal/services"

	"github.com/gin-gonic/gin"
)

type lookupListRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) ListLookupLists(c *gin.Context) {
	lists, err := h.svc.Lookups.ListLists(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lists)
}

func (h *Handler) CreateLookupList(c *gin.Context) {
	var req lookupListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	list, err := h.svc.Lookups.CreateList(c.Request.Context(), actor(c), req.Name, req.Description)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, list)
}

func (h *Handler) GetLookupList(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	list, err := h.svc.Lookups.GetList(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GetLookupListByName serves the option lists used by forms.
func (h *Handler) GetLookupListByName(c *gin.Context) {
	list, err := h.svc.Lookups.FindListByName(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) SetLookupItems(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	var items []services.LookupItemInput
	if err := c.ShouldBindJSON(&items); err != nil {
		h.badRequest(c, err)
		return
	}
	out, err := h.svc.Lookups.SetItems(c.Request.Context(), actor(c), id, items)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) DeleteLookupList(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Lookups.DeleteList(c.Request.Context(), actor(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
