package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserLogout revokes the session server-side and clears the cookie.
// Always answers 200, logging out twice is fine.
func (a *API) UserLogout(c *gin.Context) {
	if id, err := c.Cookie("session_id"); err == nil && id != "" {
		if err := a.Sessions.Revoke(id); err != nil {
			zap.L().Error("Failed to revoke session", zap.Error(err))
		}
	}

	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie("session_id", "", -1, "/", "", true, true)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
	})
}
