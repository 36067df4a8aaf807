package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	httpapi "github.com/tbourn/media-tracker/internal/http"
	"github.com/tbourn/media-tracker/internal/observability"
)

var shutdownTimeout time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the periodic refresh",
	Long: `Starts the HTTP API. When REFRESH_INTERVAL is set, every store in
REFRESH_STORES is also refreshed once per interval.

On SIGINT/SIGTERM the server stops accepting requests, running refreshes
are canceled and recorded, and traces are flushed.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 15*time.Second, "grace period for in-flight requests and runs")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, buildVersion())
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Services{
		Prices:      a.prices,
		Refresh:     a.runner,
		Stores:      a.catalog,
		Idempotency: a.store,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", buildVersion()).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		if cfg.Refresh.Interval > 0 {
			log.Info().Dur("interval", cfg.Refresh.Interval).Strs("stores", cfg.Refresh.Stores).Msg("periodic refresh enabled")
		}
		a.runner.Every(ctx, cfg.Refresh.Interval, refreshStores(cfg))
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown requested")
	case serveErr = <-errCh:
		log.Error().Err(serveErr).Msg("http server failed")
		stop()
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := a.runner.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("refresh runs did not stop in time")
	}
	<-schedDone
	if err := shutdownOTel(sctx); err != nil {
		log.Warn().Err(err).Msg("trace flush")
	}
	log.Info().Msg("bye")
	return serveErr
}
