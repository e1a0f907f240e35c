package handlers

import (
	"net/http"

	"resplan/internal/database"
	"resplan/internal/middleware"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type loginForm struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

func (h *Handler) Login(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		h.badRequest(c, err)
		return
	}

	user, err := h.svc.Identity.Authenticate(c.Request.Context(), form.Username, form.Password)
	if err != nil {
		h.log.Info("login failed", zap.String("username", form.Username))
		h.respondError(c, err)
		return
	}

	sess := sessions.Default(c)
	sess.Set(middleware.SessionUserKey, user.ID)
	if err := sess.Save(); err != nil {
		h.respondError(c, err)
		return
	}

	if err := database.CreateAuditLog(h.db.WithContext(c.Request.Context()), user, "user", user.ID, "login", "logged in"); err != nil {
		h.log.Warn("audit login", zap.Error(err))
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) Logout(c *gin.Context) {
	sess := sessions.Default(c)
	sess.Clear()
	_ = sess.Save()
	c.Status(http.StatusNoContent)
}

func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, actor(c))
}
