package telegram

import "encoding/json"

// Update is the envelope Telegram posts to webhooks. Everything in it
// is optional, check presence before touching nested fields.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
	Chat      *Chat  `json:"chat"`
	From      *User  `json:"from"`
}

type Chat struct {
	ID int64 `json:"id"`
}

type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

// Me is the bot identity returned by getMe.
type Me struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// apiResponse wraps every Bot API reply. Description is only set when
// Ok is false and is what gets surfaced to callers.
type apiResponse struct {
	Ok          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}
