package model

import "time"

// Session is a server-side login row. The ID is the opaque value the
// browser holds in its cookie. Rows past ExpiresAt are dead even if the
// reaper hasn't removed them yet.
type Session struct {
	ID        string    `gorm:"primaryKey"`
	UserID    string    `gorm:"index;not null"`
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
}
