package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/media-tracker/internal/domain"
	"github.com/tbourn/media-tracker/internal/observability"
)

var (
	refreshStore   string
	refreshTimeout time.Duration
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh the prices of every wishlisted game once",
	Long: `Runs one wishlist price refresh for a store in the foreground and
prints the recorded run as JSON. Prices are fetched for every wishlisted
game in every region the store serves, pausing REFRESH_DELAY after each
price fetch.`,
	RunE: runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
	refreshCmd.Flags().StringVarP(&refreshStore, "store", "s", string(domain.StoreSwitch), "storefront to refresh")
	refreshCmd.Flags().DurationVar(&refreshTimeout, "timeout", 0, "abort the refresh after this long (0 = no limit)")
}

func runRefresh(cmd *cobra.Command, _ []string) error {
	store, err := domain.ParseStoreType(refreshStore)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if refreshTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, refreshTimeout)
		defer cancel()
	}

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, buildVersion())
	if err != nil {
		return err
	}
	defer func() {
		fctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOTel(fctx)
	}()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	run, runErr := a.runner.Run(ctx, store)
	if run != nil {
		out, err := json.MarshalIndent(run, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
	}
	if runErr != nil {
		log.Error().Err(runErr).Str("store", string(store)).Msg("refresh failed")
		return runErr
	}
	return nil
}
