package store

import (
	"errors"
	"path/filepath"
	"testing"

	"tgrelay/relay-api/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "store_test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}

	return db
}

func TestLinksPutAndGet(t *testing.T) {
	links := NewLinks(newTestDB(t, model.Link{}))

	if err := links.Put("12345", "T1", "somebot"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	link, err := links.GetByUser("12345")
	if err != nil {
		t.Fatalf("GetByUser: %v", err)
	}
	if link.BotToken != "T1" || link.BotUsername != "somebot" {
		t.Fatalf("unexpected link: %+v", link)
	}

	link, err = links.GetByToken("T1")
	if err != nil {
		t.Fatalf("GetByToken: %v", err)
	}
	if link.UserID != "12345" {
		t.Fatalf("reverse lookup returned %q, want 12345", link.UserID)
	}
}

func TestLinksPutOverwrites(t *testing.T) {
	links := NewLinks(newTestDB(t, model.Link{}))

	if err := links.Put("12345", "T1", "somebot"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := links.Put("12345", "T2", "otherbot"); err != nil {
		t.Fatalf("re-link Put: %v", err)
	}

	link, err := links.GetByUser("12345")
	if err != nil {
		t.Fatalf("GetByUser: %v", err)
	}
	if link.BotToken != "T2" {
		t.Fatalf("re-link kept old token %q", link.BotToken)
	}

	// The old token must stop resolving
	if _, err := links.GetByToken("T1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stale token lookup returned %v, want ErrNotFound", err)
	}

	var count int64
	links.DB.Model(&model.Link{}).Where("user_id = ?", "12345").Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly one row per user, got %d", count)
	}
}

func TestLinksNotFound(t *testing.T) {
	links := NewLinks(newTestDB(t, model.Link{}))

	if _, err := links.GetByUser("99999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByUser returned %v, want ErrNotFound", err)
	}
	if _, err := links.GetByToken("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByToken returned %v, want ErrNotFound", err)
	}
}

func TestLinksUnavailableIsNotNotFound(t *testing.T) {
	// No migration, so every query hits a missing table
	links := NewLinks(newTestDB(t))

	_, err := links.GetByUser("12345")
	if err == nil {
		t.Fatal("expected an error from a broken store")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatal("availability errors must not masquerade as not-found")
	}
}
