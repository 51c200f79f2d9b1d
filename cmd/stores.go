package cmd

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/catalogsync/internal/config"
	"github.com/jon4hz/catalogsync/internal/database"
	"github.com/jon4hz/catalogsync/internal/monitor"
)

func loadConfig() *config.Config {
	cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// openStores opens the catalog store and the run metrics store.
func openStores(cfg *config.Config) (*database.Client, *monitor.Monitor, func(), error) {
	db, err := database.New(cfg.Database)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	mon, err := monitor.New(cfg.Monitoring.MetricsDBPath)
	if err != nil {
		_ = db.Close()
		return nil, nil, nil, fmt.Errorf("failed to initialize metrics store: %w", err)
	}

	closeFn := func() {
		if err := mon.Close(); err != nil {
			log.Warn("failed to close metrics store", "error", err)
		}
		if err := db.Close(); err != nil {
			log.Warn("failed to close database", "error", err)
		}
	}
	return db, mon, closeFn, nil
}
