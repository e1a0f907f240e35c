package handlers

import (
	"net/http"

	"resplan/internal/models"
	"resplan/internal/services"

	"github.com/gin-gonic/gin"
)

// ====== CONSULTANTS ======

type consultantRequest struct {
	UserID           uint           `json:"user_id"`
	Name             string         `json:"name"`
	Surname          string         `json:"surname"`
	Email            string         `json:"email"`
	PhoneNumber      string         `json:"phone_number"`
	AvailabilityDays int            `json:"availability_days"`
	Status           string         `json:"status"`
	StartDate        string         `json:"start_date"`
	EndDate          string         `json:"end_date"`
	Notes            string         `json:"notes"`
	CalendarName     string         `json:"calendar_name"`
	Attributes       map[string]any `json:"attributes"`
}

func (r consultantRequest) input() (services.ConsultantInput, error) {
	start, err := parseDate("start_date", r.StartDate)
	if err != nil {
		return services.ConsultantInput{}, err
	}
	end, err := parseDate("end_date", r.EndDate)
	if err != nil {
		return services.ConsultantInput{}, err
	}
	return services.ConsultantInput{
		UserID:           r.UserID,
		Name:             r.Name,
		Surname:          r.Surname,
		Email:            r.Email,
		PhoneNumber:      r.PhoneNumber,
		AvailabilityDays: r.AvailabilityDays,
		Status:           r.Status,
		StartDate:        start,
		EndDate:          end,
		Notes:            r.Notes,
		CalendarName:     r.CalendarName,
		Attributes:       r.Attributes,
	}, nil
}

func (h *Handler) ListConsultants(c *gin.Context) {
	out, err := h.svc.Consultants.ListConsultants(c.Request.Context(), services.ConsultantFilter{
		Query:  c.Query("q"),
		Status: c.Query("status"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) GetConsultant(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	out, err := h.svc.Consultants.GetConsultant(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) CreateConsultant(c *gin.Context) {
	var req consultantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	in, err := req.input()
	if err != nil {
		h.respondError(c, err)
		return
	}
	out, err := h.svc.Consultants.CreateConsultant(c.Request.Context(), actor(c), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *Handler) UpdateConsultant(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	var req consultantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	in, err := req.input()
	if err != nil {
		h.respondError(c, err)
		return
	}
	out, err := h.svc.Consultants.UpdateConsultant(c.Request.Context(), actor(c), id, in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) DeleteConsultant(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Consultants.DeleteConsultant(c.Request.Context(), actor(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SyncConsultants runs the role/record reconciliation sweep on demand.
func (h *Handler) SyncConsultants(c *gin.Context) {
	report, err := h.svc.Consultants.EnsureConsultantEntries(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

type expertiseRequest struct {
	Target models.ExpertiseTarget `json:"target"`
	Rating int                    `json:"rating"`
	Notes  string                 `json:"notes"`
}

// SetExpertise answers 204 when rating 0 removed the record.
func (h *Handler) SetExpertise(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	var req expertiseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	out, err := h.svc.Consultants.SetExpertise(c.Request.Context(), actor(c), id, req.Target, req.Rating, req.Notes)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if out == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, out)
}
