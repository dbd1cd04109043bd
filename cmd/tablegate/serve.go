package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/koustreak/tablegate/internal/auth"
	"github.com/koustreak/tablegate/internal/config"
	"github.com/koustreak/tablegate/internal/docstore"
	"github.com/koustreak/tablegate/internal/docstore/minio"
	"github.com/koustreak/tablegate/internal/logger"
	"github.com/koustreak/tablegate/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP gateway",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.ValidateServe(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		db, catalog, err := openStore(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer db.Close()

		gate, err := auth.New(cfg.AuthConfig(), log)
		if err != nil {
			return err
		}
		go gate.Run(ctx)

		checkDocstore(ctx, cfg, log)

		srv := server.New(cfg.ServerConfig(Version), db, catalog, gate, log)
		if err := srv.Run(ctx); err != nil {
			return err
		}
		log.Info("server stopped")
		return nil
	},
}

// checkDocstore logs whether the configured bucket exists. The gateway
// starts either way.
func checkDocstore(ctx context.Context, cfg *config.Config, log *logger.Logger) {
	dc := cfg.DocstoreConfig()
	if !dc.Enabled() {
		return
	}
	store, err := minio.New(dc)
	if err != nil {
		log.ErrorWith("document store unavailable", err, map[string]any{"endpoint": dc.Endpoint})
		return
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(ctx, dc.Timeout)
	defer cancel()
	docstore.CheckBucket(ctx, store, dc.Bucket, log)
}
