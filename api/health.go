package api

import (
	"net/http"

	"tgrelay/relay-api/db"

	"github.com/gin-gonic/gin"
)

func (a *API) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"db":     db.Ping(a.DB) == nil,
		"ffmpeg": a.Transcoder.Available(),
	})
}
