package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/star/conjscreen/internal/config"
	"github.com/star/conjscreen/internal/metrics"
	"github.com/star/conjscreen/internal/report"
	"github.com/star/conjscreen/internal/screening"
	"github.com/star/conjscreen/internal/tle"
)

// catalogFlags select the catalog source; set flags override config.
type catalogFlags struct {
	file  string
	fetch bool
}

func (f *catalogFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.file, "tle-file", "", "Read the catalog from a local TLE file")
	cmd.Flags().BoolVar(&f.fetch, "fetch", false, "Download a fresh catalog instead of using the disk cache")
}

func (f *catalogFlags) apply(cmd *cobra.Command, cfg *config.Catalog) {
	if cmd.Flags().Changed("tle-file") {
		cfg.File = f.file
	}
	if cmd.Flags().Changed("fetch") {
		cfg.Fetch = f.fetch
	}
}

// catalogSource wires the fetcher and disk cache for one process.
type catalogSource struct {
	cfg     config.Catalog
	fetcher *tle.Fetcher
	disk    *tle.Cache
	logger  *slog.Logger
}

func newCatalogSource(cfg config.Catalog, logger *slog.Logger) *catalogSource {
	return &catalogSource{
		cfg:     cfg,
		fetcher: tle.NewFetcher(cfg.SourceURL, logger, cfg.ExtraURLs...),
		disk:    tle.NewCache(cfg.CacheDir, cfg.MaxFiles),
		logger:  logger,
	}
}

// fetch downloads the catalog and records it in the disk cache.
func (s *catalogSource) fetch(ctx context.Context) (*tle.TLEDataset, error) {
	return tle.FetchAndCache(ctx, s.fetcher, s.disk, s.logger)
}

// load returns a catalog: the configured file, a fresh download when requested, or the
// newest disk snapshot, downloading when that is missing or older than MaxAge. A stale
// snapshot is still used if the download fails.
func (s *catalogSource) load(ctx context.Context) (*tle.TLEDataset, error) {
	if s.cfg.File != "" {
		return tle.LoadFile(s.cfg.File, s.logger)
	}
	if s.cfg.Fetch {
		return s.fetch(ctx)
	}

	cached, err := tle.LoadCached(s.disk, s.logger)
	switch {
	case err == nil && (s.cfg.MaxAge <= 0 || time.Since(cached.FetchedAt) <= s.cfg.MaxAge):
		return cached, nil
	case err != nil && !errors.Is(err, tle.ErrNoSnapshot):
		s.logger.Warn("ignoring unreadable catalog cache", "error", err)
	}

	fresh, ferr := s.fetch(ctx)
	if ferr == nil {
		return fresh, nil
	}
	if cached != nil {
		s.logger.Warn("catalog download failed, using stale snapshot",
			"error", ferr,
			"fetched_at", cached.FetchedAt.UTC().Format(time.RFC3339),
		)
		return cached, nil
	}
	return nil, fmt.Errorf("no catalog available: %w", ferr)
}

func publishCatalog(ds *tle.TLEDataset) {
	metrics.SetCatalogObjects(len(ds.Satellites))
	metrics.SetCatalogAge(time.Since(ds.FetchedAt).Seconds())
}

func catalogCmd(gf *globalFlags) *cobra.Command {
	var (
		cf     catalogFlags
		format string
		limit  int
		id     int
	)

	cmd := &cobra.Command{
		Use:     "catalog",
		Aliases: []string{"ls"},
		Short:   "List the objects of the loaded catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(gf)
			if err != nil {
				return err
			}
			cf.apply(cmd, &cfg.Catalog)

			f, err := report.ParseFormat(format)
			if err != nil {
				return fmt.Errorf("%w: %v", screening.ErrInvalidConfiguration, err)
			}

			ds, err := newCatalogSource(cfg.Catalog, logger).load(cmd.Context())
			if err != nil {
				return err
			}

			listing := report.NewCatalogListing(ds, limit)
			if id > 0 {
				entry, ok := ds.Lookup(id)
				if !ok {
					return fmt.Errorf("%w: NORAD %d", screening.ErrTargetNotFound, id)
				}
				listing.Entries = []tle.TLEEntry{entry}
			}
			return report.RenderCatalog(os.Stdout, listing, f)
		},
	}

	cf.register(cmd)
	cmd.Flags().StringVar(&format, "format", string(report.FormatTable), "Output format (table, csv, json)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum objects to list (0 for all)")
	cmd.Flags().IntVar(&id, "id", 0, "Show a single object by NORAD ID")
	return cmd
}
