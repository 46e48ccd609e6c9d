package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/star/conjscreen/internal/api"
	"github.com/star/conjscreen/internal/auth"
	"github.com/star/conjscreen/internal/cache"
	"github.com/star/conjscreen/internal/config"
	"github.com/star/conjscreen/internal/propagation"
	"github.com/star/conjscreen/internal/screening"
	"github.com/star/conjscreen/internal/tle"
)

func serveCmd(gf *globalFlags) *cobra.Command {
	var (
		cf   catalogFlags
		addr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve screening runs over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(gf)
			if err != nil {
				return err
			}
			cf.apply(cmd, &cfg.Catalog)
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("%w: %v", screening.ErrInvalidConfiguration, err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}

	cf.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default :8080)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store := tle.NewStore()
	adapter := propagation.NewSGP4Adapter(logger)
	source := newCatalogSource(cfg.Catalog, logger)

	// Prepare runs under the reload lock so the SGP4 cache follows the store's order.
	install := func(load func() (*tle.TLEDataset, error)) (*tle.TLEDataset, error) {
		ds, err := store.Reload(func() (*tle.TLEDataset, error) {
			ds, err := load()
			if err != nil {
				return nil, err
			}
			adapter.Prepare(ds)
			return ds, nil
		})
		if err != nil {
			return nil, err
		}
		publishCatalog(ds)
		return ds, nil
	}

	// Start without a catalog rather than fail: readiness reports it until one arrives.
	if _, err := install(func() (*tle.TLEDataset, error) { return source.load(ctx) }); err != nil {
		logger.Warn("starting without catalog", "error", err)
	}

	refresh := func(ctx context.Context) (*tle.TLEDataset, error) {
		return install(func() (*tle.TLEDataset, error) { return source.fetch(ctx) })
	}

	runCache := cache.New(cache.Config{TTL: cfg.RunCache.TTL, MaxEntries: cfg.RunCache.MaxEntries}, store, logger)
	srv := api.NewServer(cfg.Server.Addr, logger, api.Deps{
		Store:      store,
		Engine:     screening.NewEngine(adapter, cfg.Screening.EngineOptions(), logger),
		RunCache:   runCache,
		Tiers:      cfg.Screening.Tiers,
		Defaults:   cfg.Screening,
		Refresh:    refresh,
		Auth:       auth.Config{Enabled: cfg.Server.AuthEnabled, Token: cfg.Server.AuthToken},
		TrustProxy: cfg.Server.TrustProxy,
	})

	go runCache.Start(ctx)
	go refreshLoop(ctx, cfg.Server.RefreshInterval, store, refresh, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.Server.Addr, "auth_enabled", cfg.Server.AuthEnabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// refreshLoop re-downloads the catalog every interval (disabled when interval <= 0) and
// keeps the catalog age gauge current.
func refreshLoop(ctx context.Context, interval time.Duration, store *tle.Store, refresh api.RefreshFunc, logger *slog.Logger) {
	gauge := time.NewTicker(10 * time.Second)
	defer gauge.Stop()

	var fetchC <-chan time.Time
	if interval > 0 {
		t := time.NewTicker(interval)
		defer t.Stop()
		fetchC = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-gauge.C:
			if ds := store.Get(); ds != nil {
				publishCatalog(ds)
			}
		case <-fetchC:
			if _, err := refresh(ctx); err != nil {
				logger.Warn("scheduled catalog refresh failed", "error", err)
			}
		}
	}
}
