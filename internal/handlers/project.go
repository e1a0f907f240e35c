package handlers

import (
	"net/http"

	"resplan/internal/services"

	"github.com/gin-gonic/gin"
)

//
// PROJECTS
//

// projectRequest is the wire form of ProjectInput with plain dates.
// "groups" absent keeps the tree on update; "groups": [] clears it.
type projectRequest struct {
	Name           string               `json:"name"`
	Description    string               `json:"description"`
	ClientID       uint                 `json:"client_id"`
	ManagerID      uint                 `json:"manager_id"`
	TemplateID     *uint                `json:"template_id"`
	StatusID       *uint                `json:"status_id"`
	IndustryID     *uint                `json:"industry_id"`
	ProfitCenterID *uint                `json:"profit_center_id"`
	StartDate      string               `json:"start_date"`
	EndDate        string               `json:"end_date"`
	ProductIDs     []uint               `json:"product_ids"`
	Groups         []services.GroupSpec `json:"groups"`
}

func (r projectRequest) input() (services.ProjectInput, error) {
	start, err := parseDate("start_date", r.StartDate)
	if err != nil {
		return services.ProjectInput{}, err
	}
	end, err := parseDate("end_date", r.EndDate)
	if err != nil {
		return services.ProjectInput{}, err
	}
	return services.ProjectInput{
		Name:           r.Name,
		Description:    r.Description,
		ClientID:       r.ClientID,
		ManagerID:      r.ManagerID,
		TemplateID:     r.TemplateID,
		StatusID:       r.StatusID,
		IndustryID:     r.IndustryID,
		ProfitCenterID: r.ProfitCenterID,
		StartDate:      start,
		EndDate:        end,
		ProductIDs:     r.ProductIDs,
		Groups:         r.Groups,
	}, nil
}

// ListProjects accepts optional client_id and status_id filters.
func (h *Handler) ListProjects(c *gin.Context) {
	out, err := h.svc.Projects.ListProjects(c.Request.Context(), actor(c), services.ProjectFilter{
		ClientID: queryUint(c, "client_id"),
		StatusID: queryUint(c, "status_id"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) GetProject(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	out, err := h.svc.Projects.GetProject(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) CreateProject(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	in, err := req.input()
	if err != nil {
		h.respondError(c, err)
		return
	}
	out, err := h.svc.Projects.CreateProject(c.Request.Context(), actor(c), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *Handler) UpdateProject(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	in, err := req.input()
	if err != nil {
		h.respondError(c, err)
		return
	}
	out, err := h.svc.Projects.UpdateProject(c.Request.Context(), actor(c), id, in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) DeleteProject(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Projects.DeleteProject(c.Request.Context(), actor(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
