package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/catalogsync/internal/api"
	"github.com/jon4hz/catalogsync/internal/engine"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scheduler and the operational HTTP server",
	Long: `Start the sync scheduler and the operational HTTP server. Runs are triggered by the configured
interval or cron expression; a run never overlaps another one.`,
	Example: `catalogsync serve --config config.yml
catalogsync serve -c /path/to/config.yml --log-level debug
`,
	Run: startServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func startServer(cmd *cobra.Command, _ []string) {
	cfg := loadConfig()

	db, mon, closeStores, err := openStores(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer closeStores()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := engine.New(cfg, db, mon)
	if err != nil {
		log.Fatalf("failed to create engine: %v", err)
	}

	server, err := api.New(cfg, e, mon, db)
	if err != nil {
		log.Fatalf("failed to create API server: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Run(gctx)
	})

	g.Go(func() error {
		if err := e.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		log.Info("waiting for the active run to finish")
		return e.Stop()
	})

	log.Info("catalogsync started successfully", "listen", cfg.Listen)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("catalogsync stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("catalogsync stopped")
}
