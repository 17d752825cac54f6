package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SessionCheck tells the frontend whether its cookie still resolves.
// Any failure just means "not logged in", this endpoint never errors.
func (a *API) SessionCheck(c *gin.Context) {
	id, err := c.Cookie("session_id")
	if err != nil || id == "" {
		c.JSON(http.StatusOK, gin.H{"loggedIn": false})
		return
	}

	userID, err := a.Sessions.Resolve(id)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"loggedIn": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"loggedIn": true,
		"userId":   userID,
	})
}
