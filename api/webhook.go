package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"tgrelay/relay-api/store"
	"tgrelay/relay-api/telegram"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WebhookMain receives updates for the main (linking) bot. Telegram
// only wants a fast ack, so the response goes out first and the actual
// work runs as a background task whose failures can only be logged.
func (a *API) WebhookMain(c *gin.Context) {
	var u telegram.Update
	if err := c.ShouldBindJSON(&u); err != nil {
		// Acked anyway, there's nothing useful to do with a broken
		// envelope and Telegram would just redeliver it
		zap.L().Warn("Malformed webhook payload", zap.Error(err))
		c.String(http.StatusOK, "OK")
		return
	}

	c.String(http.StatusOK, "OK")

	go a.Convos.HandleUpdate(context.Background(), &u)
}

// WebhookBot receives updates for a user's linked bot, with the bot
// credential embedded in the path.
func (a *API) WebhookBot(c *gin.Context) {
	token := c.Param("token")

	var u telegram.Update
	if err := c.ShouldBindJSON(&u); err != nil {
		zap.L().Warn("Malformed webhook payload", zap.Error(err))
		c.String(http.StatusOK, "OK")
		return
	}

	c.String(http.StatusOK, "OK")

	go a.handleLinkedBotUpdate(context.Background(), token, &u)
}

func (a *API) handleLinkedBotUpdate(ctx context.Context, token string, u *telegram.Update) {
	if u.Message == nil || u.Message.Chat == nil {
		return
	}

	link, err := a.Links.GetByToken(token)
	if err != nil {
		// Unknown tokens are just noise, a dead store is worth a log
		if !errors.Is(err, store.ErrNotFound) {
			zap.L().Error("Failed to resolve bot token", zap.Error(err))
		}
		return
	}

	if strings.TrimSpace(u.Message.Text) != "/start" {
		return
	}

	ownerID, err := strconv.ParseInt(link.UserID, 10, 64)
	if err != nil {
		zap.L().Error("Link holds a non-numeric user id", zap.String("userID", link.UserID))
		return
	}

	bot := telegram.NewClient(token)

	if err := bot.SendMessage(ctx, ownerID, "Your bot is connected. Videos you upload will arrive in this chat."); err != nil {
		zap.L().Warn("Failed to confirm to owner", zap.Error(err), zap.Int64("ownerID", ownerID))
	}

	// Someone else poking the bot gets told it's not for them
	if u.Message.From != nil && u.Message.From.ID != ownerID {
		if err := bot.SendMessage(ctx, u.Message.Chat.ID, "This bot only delivers videos to its owner."); err != nil {
			zap.L().Warn("Failed to notify sender", zap.Error(err), zap.Int64("chatID", u.Message.Chat.ID))
		}
	}
}
