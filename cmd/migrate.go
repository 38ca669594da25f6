package cmd

import (
	"fmt"

	"github.com/spurstore/supportchat/db"
	"github.com/spurstore/supportchat/internal/config"
	"github.com/spurstore/supportchat/internal/log"
)

// runMigrate applies pending database migrations and exits.
// serve also migrates on startup; this command exists for deploy
// pipelines that migrate before rolling the server.
func runMigrate() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{Level: cfg.SlogLevel(), JSON: cfg.LogJSON})

	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("migrations applied")
	return nil
}
