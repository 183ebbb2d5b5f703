package main

import (
	"log"
	"time"

	"github.com/planora-dev/planora/db"
	"github.com/planora-dev/planora/internal/auth"
	"github.com/planora-dev/planora/internal/cache"
	"github.com/planora-dev/planora/internal/config"
	"github.com/planora-dev/planora/internal/logger"
	"github.com/planora-dev/planora/internal/router"
	"github.com/planora-dev/planora/internal/services"
)

func main() {
	cfg, err := config.Load()

	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog := logger.New(cfg.Env)
	defer zlog.Sync()

	if err := auth.InitJWTSecret(); err != nil {
		zlog.Fatalw("JWT secret missing", "error", err)
	}

	if err := db.ConnectDatabase(cfg.DatabaseURL); err != nil {
		zlog.Fatalw("Failed to connect to database", "error", err)
	}

	if err := db.MigrateDatabase(); err != nil {
		zlog.Fatalw("Failed to migrate database", "error", err)
	}

	deps := router.Dependencies{
		Config: cfg,
		Log:    zlog,
		Cache:  cache.New(time.Hour),
		Mailer: services.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom),
		Calendar: services.NewCalendarService(
			cfg.GoogleClientID,
			cfg.GoogleClientSecret,
			cfg.GoogleRefreshToken,
			cfg.GoogleCalendarID,
			cfg.CalendarTimeZone,
		),
	}

	r := router.NewRouter(deps)

	zlog.Infow("Starting server", "port", cfg.Port)

	if err := r.Run(":" + cfg.Port); err != nil {
		zlog.Fatalw("Failed to start server", "error", err)
	}
}
