// Package db contains things related to SQLite
package db

import (
	"fmt"
	"time"

	"tgrelay/relay-api/model"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func New() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(viper.GetString("db.path")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite database, %w", err)
	}

	err = db.AutoMigrate(model.Link{}, model.Session{})
	if err != nil {
		return nil, fmt.Errorf("failed to automigrate tables, %w", err)
	}

	return db, nil
}

// Ping checks whether the database is still reachable.
func Ping(g *gorm.DB) error {
	sqlDB, err := g.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Watch periodically pings the database and, on connection loss, sits
// in a fixed-delay retry loop until it comes back instead of letting
// every request die against a dead handle.
func Watch(g *gorm.DB) {
	go func() {
		for {
			time.Sleep(30 * time.Second)

			if err := Ping(g); err == nil {
				continue
			} else {
				zap.L().Error("Lost database connection", zap.Error(err))
			}

			for {
				time.Sleep(5 * time.Second)

				if err := Ping(g); err == nil {
					zap.L().Info("Database connection restored")
					break
				}
			}
		}
	}()
}
