package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"resplan/internal/errs"
	"resplan/internal/middleware"
	"resplan/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

func actor(c *gin.Context) *models.User {
	return middleware.CurrentUser(c)
}

// statusFor maps the service error taxonomy to HTTP.
func statusFor(err error) int {
	var (
		v    *errs.ValidationError
		dup  *errs.DuplicateNameError
		dep  *errs.HasDependentsError
		perm *errs.PermissionError
		nf   *errs.NotFoundError
	)
	switch {
	case errors.Is(err, errs.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.As(err, &v):
		return http.StatusBadRequest
	case errors.As(err, &dup), errors.As(err, &dep):
		return http.StatusConflict
	case errors.As(err, &perm):
		return http.StatusForbidden
	case errors.As(err, &nf):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// respondError renders err; validation failures echo the field and input so
// the client can resume editing.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}

	var v *errs.ValidationError
	if errors.As(err, &v) {
		body["field"] = v.Field
		if v.Input != nil {
			body["input"] = v.Input
		}
	}
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, body)
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	h.respondError(c, &errs.ValidationError{Message: "malformed request: " + err.Error()})
}

// idParam parses a positive path id; on failure the response is written
// and ok is false.
func (h *Handler) idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		h.respondError(c, errs.Validation(name, "invalid id"))
		return 0, false
	}
	return uint(id), true
}

func parseDate(field, s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, &errs.ValidationError{Field: field, Message: "date must be YYYY-MM-DD", Input: s}
	}
	return &t, nil
}

// optionalUint reads an optional id; empty means nil.
func optionalUint(field, s string) (*uint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == 0 {
		return nil, &errs.ValidationError{Field: field, Message: "invalid id", Input: s}
	}
	id := uint(v)
	return &id, nil
}

func queryUint(c *gin.Context, key string) uint {
	v, err := strconv.ParseUint(c.Query(key), 10, 64)
	if err != nil {
		return 0
	}
	return uint(v)
}
