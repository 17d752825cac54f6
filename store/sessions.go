package store

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"tgrelay/relay-api/model"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Sessions struct {
	DB  *gorm.DB
	TTL time.Duration
}

func NewSessions(db *gorm.DB, ttl time.Duration) *Sessions {
	return &Sessions{DB: db, TTL: ttl}
}

// Create stores a new session for the user and returns its opaque id.
func (s *Sessions) Create(userID string) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session id, %w", err)
	}
	id := hex.EncodeToString(b)

	sess := model.Session{
		ID:        id,
		UserID:    userID,
		ExpiresAt: time.Now().Add(s.TTL),
	}

	if err := s.DB.Create(&sess).Error; err != nil {
		return "", fmt.Errorf("failed to create session, %w", err)
	}

	return id, nil
}

// Resolve returns the user id behind a session. Expiry is checked here
// too, correctness never waits on the reaper.
func (s *Sessions) Resolve(id string) (string, error) {
	var sess model.Session

	err := s.DB.Where("id = ? AND expires_at > ?", id, time.Now()).First(&sess).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to resolve session, %w", err)
	}

	return sess.UserID, nil
}

// Revoke deletes a session. Revoking a session that doesn't exist is
// a no-op.
func (s *Sessions) Revoke(id string) error {
	if err := s.DB.Delete(&model.Session{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to revoke session, %w", err)
	}
	return nil
}

func (s *Sessions) sweep() {
	res := s.DB.Delete(&model.Session{}, "expires_at <= ?", time.Now())
	if res.Error != nil {
		zap.L().Error("Session sweep failed", zap.Error(res.Error))
		return
	}

	if res.RowsAffected > 0 {
		zap.L().Debug("Swept expired sessions", zap.Int64("count", res.RowsAffected))
	}
}

// StartReaper schedules the expiry sweep that removes dead rows.
func (s *Sessions) StartReaper() *cron.Cron {
	c := cron.New()
	c.AddFunc("@every 1m", s.sweep)
	c.Start()
	return c
}
