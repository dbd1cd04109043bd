package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/koustreak/tablegate/internal/config"
	"github.com/koustreak/tablegate/internal/database"
	"github.com/koustreak/tablegate/internal/logger"
	"github.com/koustreak/tablegate/internal/schema"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "tablegate",
	Short: "HTTP gateway for browsing and editing tables of a legacy database",
	Long: `tablegate exposes the tables of a relational store over a small HTTP API:
record-at-a-time navigation, paged grids, single-record updates and catalog
metadata, behind a cookie session login.

Settings come from an optional YAML file (--config) and TABLEGATE_*
environment variables, e.g. TABLEGATE_DATABASE_DSN.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.AddCommand(serveCmd, inspectCmd, hashPasswordCmd, versionCmd)
}

// loadConfig reads the configuration and builds the process logger.
func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(cfg.LoggerConfig())
	logger.SetGlobal(log)
	return cfg, log, nil
}

// openStore opens the pool and a schema catalog over it.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (*database.Manager, *schema.Catalog, error) {
	db, err := database.Open(ctx, cfg.DatabaseConfig(), log)
	if err != nil {
		return nil, nil, err
	}
	catalog, err := schema.NewCatalog(db.Schema(), cfg.Schema.CacheSize, log)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, catalog, nil
}
