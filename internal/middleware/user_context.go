package middleware

import (
	"resplan/internal/models"
	"resplan/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	SessionUserKey = "user_id"
	CurrentUserKey = "CurrentUser"
)

// InjectUser loads the session's user with roles on every request. Stale
// sessions (deleted or deactivated user) are cleared.
func InjectUser(identity *services.IdentityService, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)

		if uid, ok := sess.Get(SessionUserKey).(uint); ok && uid > 0 {
			user, err := identity.GetUser(c.Request.Context(), uid)
			switch {
			case err == nil && user.IsActive:
				c.Set(CurrentUserKey, user)
			default:
				log.Debug("dropping stale session", zap.Uint("user_id", uid), zap.Error(err))
				sess.Clear()
				_ = sess.Save()
			}
		}

		c.Next()
	}
}

// CurrentUser returns the user set by InjectUser, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(CurrentUserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}
