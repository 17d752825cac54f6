package middleware

import (
	"errors"
	"net/http"

	"tgrelay/relay-api/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionCookie is the name of the cookie carrying the opaque session
// id.
const SessionCookie = "session_id"

// NewSessionMiddleware resolves the session cookie against the session
// store and sets userID on the context. Store trouble is a 500, never a
// silent 401.
func NewSessionMiddleware(sessions *store.Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.MustGet("requestID").(string)

		id, err := c.Cookie(SessionCookie)
		if err != nil || id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "Not logged in",
				"requestID": requestID,
			})
			return
		}

		userID, err := sessions.Resolve(id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":     "Not logged in",
					"requestID": requestID,
				})
				return
			}

			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":     "Internal server error",
				"requestID": requestID,
			})

			zap.L().Error("Failed to resolve session", zap.Error(err), zap.String("requestID", requestID))
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}
