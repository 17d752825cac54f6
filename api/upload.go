package api

import (
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strconv"

	"tgrelay/relay-api/store"
	"tgrelay/relay-api/telegram"
	"tgrelay/relay-api/validators"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Upload relays one video to the user's linked bot: resolve the link,
// stage the upload on disk, shrink it to the size budget if needed,
// stream it to Telegram, and sweep every temp artifact no matter which
// step failed.
func (a *API) Upload(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	link, err := a.Links.GetByUser(userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
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

	fh, err := c.FormFile("video")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "No file provided",
			"requestID": requestID,
		})
		return
	}
	caption := c.PostForm("caption")

	if code, err := validators.VideoFile(fh); err != nil {
		if code == http.StatusInternalServerError {
			zap.L().Error("Failed to validate file", zap.Error(err), zap.String("requestID", requestID))
			err = errors.New("internal server error")
		}

		c.AbortWithStatusJSON(code, gin.H{
			"error":     err.Error(),
			"requestID": requestID,
		})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to open uploaded file", zap.Error(err), zap.String("requestID", requestID))
		return
	}
	defer f.Close()

	temp, err := os.CreateTemp("", "upload-*.mp4")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to create temporary file", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	staged := temp.Name()
	final := staged

	// Both candidate artifacts get swept on every exit path. The
	// transcoder already removed staged on a successful re-encode, so
	// a missing file is the normal case, anything else gets logged but
	// never changes the response.
	defer func() {
		paths := []string{staged}
		if final != staged {
			paths = append(paths, final)
		}

		for _, p := range paths {
			if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				zap.L().Error("Failed to remove temporary file", zap.Error(err), zap.String("path", p))
			}
		}
	}()

	originalSize, err := io.Copy(temp, f)
	temp.Close()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to stage upload", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	final, compressed := a.Transcoder.Shrink(c.Request.Context(), staged, viper.GetInt64("upload.target_size"))

	finalStat, err := os.Stat(final)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Final artifact vanished before delivery", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	// The user id was digits-validated at login time
	chatID, _ := strconv.ParseInt(userID, 10, 64)

	err = telegram.NewClient(link.BotToken).SendVideo(c.Request.Context(), chatID, final, caption)
	if err != nil {
		// Upstream description goes to the user verbatim
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     err.Error(),
			"requestID": requestID,
		})

		zap.L().Error("Delivery failed", zap.Error(err), zap.String("requestID", requestID), zap.String("userID", userID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"original_size": originalSize,
		"final_size":    finalStat.Size(),
		"compressed":    compressed,
	})
}
