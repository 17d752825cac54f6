// Package model defines database models
package model

import "time"

// Link maps a Telegram user to the bot they registered through the
// /add flow. One active token per user, last write wins on re-linking.
// The token carries a unique index so linked-bot webhooks can resolve
// their owner without a table scan.
type Link struct {
	UserID      string `gorm:"primaryKey"`
	BotToken    string `gorm:"uniqueIndex;not null"`
	BotUsername string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
