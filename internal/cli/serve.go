package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/wide"
	"github.com/layer-3/wide/internal/config"
	"github.com/layer-3/wide/internal/logging"
	"github.com/spf13/cobra"
)

// serveCmd starts the HTTP server and the anchoring consumer
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the WIDE server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}

		logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
		slog.SetDefault(logger)

		if logging.ParseLevel(cfg.Logging.Level) > slog.LevelDebug {
			gin.SetMode(gin.ReleaseMode)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg, logger)
	},
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	app, err := wide.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to close backends", "error", err)
		}
	}()

	return app.Run(ctx)
}
