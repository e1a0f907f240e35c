package handlers

import (
	"net/http"

	"resplan/internal/services"

	"github.com/gin-gonic/gin"
)

//
// CLIENTS
//

// clientInputFromForm reads the client form. An unchecked "active" box is
// simply absent from the form and means false.
func clientInputFromForm(c *gin.Context) (services.ClientInput, error) {
	in := services.ClientInput{
		Name:           c.PostForm("name"),
		Address:        c.PostForm("address"),
		City:           c.PostForm("city"),
		SalesPerson:    c.PostForm("sales_person"),
		ProjectManager: c.PostForm("project_manager"),
		Notes:          c.PostForm("notes"),
	}

	var err error
	if in.CountryID, err = optionalUint("country_id", c.PostForm("country_id")); err != nil {
		return in, err
	}
	if in.IndustryID, err = optionalUint("industry_id", c.PostForm("industry_id")); err != nil {
		return in, err
	}
	raw, present := c.GetPostForm("active")
	if in.Active, err = services.ParseBool("active", raw, present); err != nil {
		return in, err
	}
	return in, nil
}

func (h *Handler) ListClients(c *gin.Context) {
	activeOnly, err := services.ParseBool("active", c.Query("active"), c.Query("active") != "")
	if err != nil {
		h.respondError(c, err)
		return
	}
	clients, err := h.svc.Clients.ListClients(c.Request.Context(), activeOnly)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, clients)
}

func (h *Handler) CreateClient(c *gin.Context) {
	in, err := clientInputFromForm(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	client, err := h.svc.Clients.CreateClient(c.Request.Context(), actor(c), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, client)
}

func (h *Handler) UpdateClient(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	in, err := clientInputFromForm(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	client, err := h.svc.Clients.UpdateClient(c.Request.Context(), actor(c), id, in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h *Handler) DeleteClient(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Clients.DeleteClient(c.Request.Context(), actor(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
