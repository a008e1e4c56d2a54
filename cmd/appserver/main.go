package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	app "github.com/docuindex/engine/internal/app"
	"github.com/docuindex/engine/infrastructure/logging"
	"github.com/docuindex/engine/internal/config"
	"github.com/docuindex/engine/internal/platform/database"
	"github.com/docuindex/engine/internal/platform/migrations"
)

func main() {
	dsn := flag.String("dsn", "", "PostgreSQL DSN (overrides DATABASE_URL)")
	runMigrations := flag.Bool("migrate", true, "run embedded database migrations on startup")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}
	if trimmed := strings.TrimSpace(*dsn); trimmed != "" {
		cfg.DatabaseURL = trimmed
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := logging.New("docuindex", cfg.LogLevel, cfg.LogFormat)

	rootCtx := context.Background()

	db, err := database.Open(rootCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect to postgres: %v", err)
	}
	defer db.Close()
	configurePool(db, cfg)

	if *runMigrations {
		if err := migrations.Apply(db); err != nil {
			log.Fatalf("apply migrations: %v", err)
		}
	}

	application, err := app.New(rootCtx, cfg, db, logger)
	if err != nil {
		log.Fatalf("initialise application: %v", err)
	}

	ctx := context.Background()
	if err := application.Start(ctx); err != nil {
		log.Fatalf("start application: %v", err)
	}
	logger.Info(ctx, "docuindex listening", map[string]interface{}{"port": cfg.HTTPPort, "env": string(cfg.Env)})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := application.Stop(shutdownCtx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}

func configurePool(db interface {
	SetMaxOpenConns(int)
	SetMaxIdleConns(int)
	SetConnMaxIdleTime(time.Duration)
}, cfg *config.Config) {
	if cfg.DBMaxConnections > 0 {
		db.SetMaxOpenConns(cfg.DBMaxConnections)
		db.SetMaxIdleConns(cfg.DBMaxConnections)
	}
	if cfg.DBIdleTimeout > 0 {
		db.SetConnMaxIdleTime(cfg.DBIdleTimeout)
	}
}
