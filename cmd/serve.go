package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lender-enrich/internal/delivery"
	"github.com/sells-group/lender-enrich/internal/events"
	"github.com/sells-group/lender-enrich/internal/server"
)

var (
	servePort    int
	serveSkipDNC bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and progress websocket",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		env, err := initPipeline(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		hub := events.NewHub()
		defer hub.Close()

		api := server.New(ctx, server.Deps{
			Enricher: env.Orchestrator,
			Checker:  env.Checker,
			Journal:  env.Store,
			Hub:      hub,
			Webhook:  delivery.NewWebhook(cfg.Delivery.WebhookURL, seconds(cfg.Delivery.TimeoutSecs)),
			Metrics:  env.Metrics,
			SkipDNC:  serveSkipDNC,
		})

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           api.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gCtx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gCtx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		err = g.Wait()
		// Background batches stop at the next record once ctx is done.
		api.Wait()
		return err
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveSkipDNC, "skip-dnc", false, "skip the do-not-call pass for API batches")
	rootCmd.AddCommand(serveCmd)
}
