package handlers

import (
	"net/http"

	"resplan/internal/services"

	"github.com/gin-gonic/gin"
)

// ====== PRODUCT GROUPS ======

type groupRequest struct {
	services.GroupInput
	Elements []services.ElementInput `json:"elements"`
}

func (h *Handler) ListGroups(c *gin.Context) {
	groups, err := h.svc.Catalog.ListGroups(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (h *Handler) CreateGroup(c *gin.Context) {
	var req services.GroupInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	group, err := h.svc.Catalog.CreateGroup(c.Request.Context(), actor(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, group)
}

func (h *Handler) GetGroup(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	group, err := h.svc.Catalog.GetGroup(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

// UpdateGroup replaces the group's elements with the request's list.
func (h *Handler) UpdateGroup(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	var req groupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	group, err := h.svc.Catalog.UpdateGroup(c.Request.Context(), actor(c), id, req.GroupInput, req.Elements)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

func (h *Handler) DeleteGroup(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Catalog.DeleteGroup(c.Request.Context(), actor(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ====== ELEMENTS ======

func (h *Handler) AddElement(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	var req services.ElementInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	el, err := h.svc.Catalog.AddElement(c.Request.Context(), actor(c), id, req.Label, req.Activity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, el)
}

func (h *Handler) DeleteElement(c *gin.Context) {
	id, ok := h.idParam(c, "element_id")
	if !ok {
		return
	}
	if err := h.svc.Catalog.DeleteElement(c.Request.Context(), actor(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ====== PRODUCTS / SERVICES ======

func (h *Handler) SearchServices(c *gin.Context) {
	out, err := h.svc.Catalog.SearchServices(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) CreateService(c *gin.Context) {
	var req services.ServiceInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	out, err := h.svc.Catalog.CreateService(c.Request.Context(), actor(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *Handler) UpdateService(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	var req services.ServiceInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	out, err := h.svc.Catalog.UpdateService(c.Request.Context(), actor(c), id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) DeleteService(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Catalog.DeleteService(c.Request.Context(), actor(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type groupSpecRequest struct {
	GroupIDs []uint `json:"group_ids"`
}

// CatalogGroupSpec returns a project tree seeded from catalog groups, for
// the client to edit before creating the project.
func (h *Handler) CatalogGroupSpec(c *gin.Context) {
	var req groupSpecRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	specs, err := h.svc.Catalog.GroupSpecFromCatalog(c.Request.Context(), req.GroupIDs)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, specs)
}
