// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/pflag"
	v "github.com/spf13/viper"
	"go.uber.org/zap"
)

var validLogLevels = []string{"debug", "info", "warn", "error", "fatal"}

// Setup prepares everything config-related so that the app can
// start working. Function will return an error if something
// is critically wrong and the application can't run because of
// that.
func Setup() error {
	pflag.Parse()
	v.BindPFlags(pflag.CommandLine)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	v.AutomaticEnv()

	//
	// ENVS
	//
	v.BindEnv("app.log_level", "app_log_level")

	v.BindEnv("host.port", "host_port")
	v.BindEnv("host.frontend_origin", "host_frontend_origin")

	v.BindEnv("db.path", "db_path")

	v.BindEnv("session.ttl_hours", "session_ttl_hours")

	v.BindEnv("upload.max_size", "upload_max_size")
	v.BindEnv("upload.target_size", "upload_target_size")

	v.BindEnv("ffmpeg.path", "ffmpeg_path")
	v.BindEnv("ffmpeg.timeout_minutes", "ffmpeg_timeout_minutes")

	v.BindEnv("telegram.api_url", "telegram_api_url")
	v.BindEnv("telegram.main_bot_token", "telegram_main_bot_token")
	v.BindEnv("telegram.webhook_base", "telegram_webhook_base")

	//
	// Defaults
	//
	v.SetDefault("app.log_level", "info")

	v.SetDefault("host.port", 8080)
	v.SetDefault("host.frontend_origin", "http://localhost:5173")

	v.SetDefault("db.path", "relay.db")

	v.SetDefault("session.ttl_hours", 24)

	v.SetDefault("upload.max_size", 200)
	v.SetDefault("upload.target_size", 10)

	v.SetDefault("ffmpeg.path", "ffmpeg")
	v.SetDefault("ffmpeg.timeout_minutes", 5)

	v.SetDefault("telegram.api_url", "https://api.telegram.org")

	if err := v.ReadInConfig(); err != nil {
		// Env-only deployments are fine, everything else is not
		if _, ok := err.(v.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file, %w", err)
		}
	}

	if !slices.Contains(validLogLevels, v.GetString("app.log_level")) {
		return errors.New("invalid log level provided")
	}

	if v.GetInt("host.port") <= 0 {
		return errors.New("invalid port provided")
	}

	if v.GetInt("session.ttl_hours") <= 0 {
		return errors.New("session.ttl_hours must be bigger than 0")
	}

	if v.GetInt("upload.max_size") <= 0 {
		return errors.New("upload.max_size must be bigger than 0")
	}

	if v.GetInt("upload.target_size") <= 0 {
		return errors.New("upload.target_size must be bigger than 0")
	}

	if v.GetInt("upload.target_size") > v.GetInt("upload.max_size") {
		return errors.New("upload.target_size can't exceed upload.max_size")
	}

	if v.GetString("telegram.main_bot_token") == "" {
		return errors.New("telegram.main_bot_token is missing, create a bot with @BotFather first")
	}

	if v.GetString("telegram.webhook_base") == "" {
		zap.L().Warn("No telegram.webhook_base set, linked bots won't get webhooks registered")
	}

	// Sizes are configured in MB but used in bytes everywhere
	v.Set("upload.max_size", v.GetInt64("upload.max_size")<<20)
	return nil
}
