package telegram

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tgrelay/relay-api/store"

	"github.com/jellydator/ttlcache/v2"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Abandoned /add flows are dropped after this long instead of sticking
// around forever.
const conversationTTL = 15 * time.Minute

var userIDPattern = regexp.MustCompile(`^\d+$`)

type step int

const (
	awaitingToken step = iota
	awaitingUserID
)

// pendingLink is the per-chat progress of one /add dialogue.
type pendingLink struct {
	step        step
	botToken    string
	botUsername string
}

// Conversations drives the /add linking dialogue on the main bot.
// State lives in memory only, a restart simply forgets half-finished
// flows.
type Conversations struct {
	links  *store.Links
	main   *Client
	states *ttlcache.Cache
}

func NewConversations(links *store.Links, main *Client) *Conversations {
	states := ttlcache.NewCache()
	states.SetTTL(conversationTTL)
	states.SkipTTLExtensionOnHit(true)

	return &Conversations{
		links:  links,
		main:   main,
		states: states,
	}
}

// HandleUpdate processes one inbound update for the main bot. Called
// after the webhook was already acked, so failures can only be logged
// or replied, never surfaced to Telegram.
func (c *Conversations) HandleUpdate(ctx context.Context, u *Update) {
	if u == nil || u.Message == nil || u.Message.Chat == nil {
		return
	}

	chatID := u.Message.Chat.ID
	chatKey := strconv.FormatInt(chatID, 10)
	text := strings.TrimSpace(u.Message.Text)

	// /add always starts over, even mid-flow
	if text == "/add" {
		c.states.Set(chatKey, &pendingLink{step: awaitingToken})
		c.reply(ctx, chatID, "Send me the bot token you got from @BotFather.")
		return
	}

	raw, err := c.states.Get(chatKey)
	if err != nil {
		// Idle chat, nothing pending
		if text == "/start" {
			c.reply(ctx, chatID, "Hi! Use /add to link a bot of yours, then log in on the website to send it videos.")
		} else {
			c.reply(ctx, chatID, "I only understand /add. Use it to link your bot.")
		}
		return
	}

	p := raw.(*pendingLink)

	switch p.step {
	case awaitingToken:
		c.handleToken(ctx, chatID, chatKey, p, text)
	case awaitingUserID:
		c.handleUserID(ctx, chatID, chatKey, p, text)
	}
}

func (c *Conversations) handleToken(ctx context.Context, chatID int64, chatKey string, p *pendingLink, token string) {
	me, err := NewClient(token).GetMe(ctx)
	if err != nil {
		c.states.Remove(chatKey)
		c.reply(ctx, chatID, "That token doesn't work ("+err.Error()+"). Start over with /add.")
		return
	}

	p.botToken = token
	p.botUsername = me.Username
	p.step = awaitingUserID
	c.states.Set(chatKey, p)

	c.reply(ctx, chatID, fmt.Sprintf("Found @%s. Now send me your numeric Telegram ID.", me.Username))
}

func (c *Conversations) handleUserID(ctx context.Context, chatID int64, chatKey string, p *pendingLink, userID string) {
	if !userIDPattern.MatchString(userID) {
		// Stay on this step, just re-prompt
		c.reply(ctx, chatID, "That doesn't look like a numeric ID. Send digits only.")
		return
	}

	if err := c.links.Put(userID, p.botToken, p.botUsername); err != nil {
		c.states.Remove(chatKey)
		zap.L().Error("Failed to persist link", zap.Error(err), zap.String("userID", userID))
		c.reply(ctx, chatID, "Something went wrong saving your link. Please try /add again.")
		return
	}

	c.states.Remove(chatKey)

	note := fmt.Sprintf("Linked @%s to ID %s.", p.botUsername, userID)
	base := viper.GetString("telegram.webhook_base")

	// The link is already saved, webhook registration failing doesn't
	// undo it
	if base == "" {
		note += " No public webhook base is configured, so your bot won't get inbound messages."
	} else if err := NewClient(p.botToken).SetWebhook(ctx, strings.TrimSuffix(base, "/")+"/api/webhook/"+p.botToken); err != nil {
		zap.L().Warn("Webhook registration failed", zap.Error(err), zap.String("userID", userID))
		note += " Webhook registration failed: " + err.Error()
	} else {
		note += " Webhook registered, you're all set."
	}

	c.reply(ctx, chatID, note)
}

func (c *Conversations) reply(ctx context.Context, chatID int64, text string) {
	if err := c.main.SendMessage(ctx, chatID, text); err != nil {
		zap.L().Warn("Failed to send reply", zap.Error(err), zap.Int64("chatID", chatID))
	}
}
