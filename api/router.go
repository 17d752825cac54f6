// Package api contains all endpoints available
package api

import (
	"fmt"
	"time"

	"tgrelay/relay-api/db"
	"tgrelay/relay-api/middleware"
	"tgrelay/relay-api/service"
	"tgrelay/relay-api/store"
	"tgrelay/relay-api/telegram"

	ginzap "github.com/gin-contrib/zap"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
)

const (
	gray  = "\x1b[90m"
	reset = "\x1b[0m"
)

type API struct {
	DB         *gorm.DB
	Router     *gin.Engine
	Links      *store.Links
	Sessions   *store.Sessions
	Bot        *telegram.Client
	Convos     *telegram.Conversations
	Transcoder *service.Transcoder
}

func NewRouter() (*API, error) {
	a := &API{}

	database, err := db.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite database, %w", err)
	}
	a.DB = database
	db.Watch(database)

	makeLogger()

	a.Links = store.NewLinks(database)
	a.Sessions = store.NewSessions(database, time.Duration(viper.GetInt("session.ttl_hours"))*time.Hour)
	a.Sessions.StartReaper()

	a.Bot = telegram.NewClient(viper.GetString("telegram.main_bot_token"))
	a.Convos = telegram.NewConversations(a.Links, a.Bot)
	a.Transcoder = service.NewTranscoder()

	router := gin.New()
	a.Router = router

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     []string{viper.GetString("host.frontend_origin")},
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetString("userID"); v != "" {
					fields = append(fields, zap.String("userID", v))
				}

				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true
	router.MaxMultipartMemory = 5 << 20

	session := middleware.NewSessionMiddleware(a.Sessions)
	maxUploadSize := viper.GetInt64("upload.max_size")

	main := router.Group("/api")
	{
		// GET /api/health		-> Store connectivity and encoder availability
		main.GET("/health", a.Health)

		// POST /api/login		-> Trades a linked user id for a session cookie
		main.POST("/login", middleware.BodySizeLimiter(1<<20), a.UserLogin)

		// POST /api/logout		-> Revokes the session and clears the cookie
		main.POST("/logout", a.UserLogout)

		// GET /api/session		-> Tells the frontend whether it's logged in
		main.GET("/session", a.SessionCheck)

		// POST /api/upload		-> Relays a video to the user's linked bot.
		// The extra MB covers multipart framing around a max-size file
		main.POST("/upload", session, middleware.BodySizeLimiter(maxUploadSize+(1<<20)), a.Upload)

		// POST /api/webhook		-> Updates for the main (linking) bot
		main.POST("/webhook", a.WebhookMain)

		// POST /api/webhook/:token	-> Updates for a user's linked bot
		main.POST("/webhook/:token", a.WebhookBot)
	}

	return a, nil
}

func makeLogger() {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + t.Format("15:04:05.000") + reset)
	}
	cfg.EncoderConfig.EncodeCaller = func(ec zapcore.EntryCaller, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + ec.TrimmedPath() + reset)
	}

	if lvl, err := zapcore.ParseLevel(viper.GetString("app.log_level")); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	cfg.DisableStacktrace = true

	log, _ := cfg.Build()
	zap.ReplaceGlobals(log)
}
