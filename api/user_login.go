package api

import (
	"errors"
	"net/http"

	"tgrelay/relay-api/store"
	"tgrelay/relay-api/validators"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type loginBody struct {
	UserID string `json:"user_id" form:"user_id"`
}

// UserLogin trades a linked Telegram id for a session cookie. There's
// no password, owning a linked bot is the credential.
func (a *API) UserLogin(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	var data loginBody
	if err := c.ShouldBind(&data); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	if !validators.UserID(data.UserID) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid user ID",
			"requestID": requestID,
		})
		return
	}

	link, err := a.Links.GetByUser(data.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "Not linked. Message the bot with /add first.",
				"requestID": requestID,
			})
			return
		}

		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to look up link", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	id, err := a.Sessions.Create(data.UserID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to create session", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	// Cross-site frontend, so SameSite=None + Secure
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie("session_id", id, int(a.Sessions.TTL.Seconds()), "/", "", true, true)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"userID":  data.UserID,
		"bot":     link.BotUsername,
	})
}
