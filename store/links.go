// Package store wraps all database access for links and sessions.
// Every function distinguishes ErrNotFound from availability problems
// so handlers can tell a missing row from a dead database.
package store

import (
	"errors"
	"fmt"

	"tgrelay/relay-api/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound means the row doesn't exist. Anything else returned from
// this package is a database availability problem.
var ErrNotFound = errors.New("record not found")

type Links struct {
	DB *gorm.DB
}

func NewLinks(db *gorm.DB) *Links {
	return &Links{DB: db}
}

// Put upserts the (user, token) pair. Re-linking overwrites the
// previous token for that user.
func (l *Links) Put(userID, botToken, botUsername string) error {
	link := model.Link{
		UserID:      userID,
		BotToken:    botToken,
		BotUsername: botUsername,
	}

	err := l.DB.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"bot_token", "bot_username", "updated_at"}),
		}).
		Create(&link).
		Error
	if err != nil {
		return fmt.Errorf("failed to upsert link, %w", err)
	}

	return nil
}

func (l *Links) GetByUser(userID string) (*model.Link, error) {
	var link model.Link

	err := l.DB.Where("user_id = ?", userID).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query link, %w", err)
	}

	return &link, nil
}

// GetByToken is the reverse lookup used by linked-bot webhooks.
func (l *Links) GetByToken(botToken string) (*model.Link, error) {
	var link model.Link

	err := l.DB.Where("bot_token = ?", botToken).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query link by token, %w", err)
	}

	return &link, nil
}
