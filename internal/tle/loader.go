package tle

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// LoadFile parses a local TLE file into a dataset stamped with the file's mtime.
func LoadFile(path string, logger *slog.Logger) (*TLEDataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat catalog file: %w", err)
	}
	return fromBytes(data, "file:"+path, info.ModTime(), logger)
}

// LoadCached parses the newest on-disk snapshot.
func LoadCached(c *Cache, logger *slog.Logger) (*TLEDataset, error) {
	data, ts, err := c.LoadLatest()
	if err != nil {
		return nil, err
	}
	return fromBytes(data, "cache", ts, logger)
}

// FetchAndCache downloads the catalog, stores the raw bytes in c (when non-nil) and
// returns the parsed dataset.
func FetchAndCache(ctx context.Context, f *Fetcher, c *Cache, logger *slog.Logger) (*TLEDataset, error) {
	data, err := f.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ds, err := fromBytes(data, f.SourceURL(), now, logger)
	if err != nil {
		return nil, err
	}

	if c != nil {
		if err := c.Write(data, now); err != nil {
			logger.Warn("failed to cache catalog snapshot", "error", err)
		}
	}
	return ds, nil
}

func fromBytes(data []byte, source string, fetchedAt time.Time, logger *slog.Logger) (*TLEDataset, error) {
	entries, err := Parse(bytes.NewReader(data), logger)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("catalog from %s contains no valid entries", source)
	}

	ds := NewDataset(source, fetchedAt, entries, logger)
	logger.Info("catalog loaded",
		"source", source,
		"count", len(ds.Satellites),
		"epoch_min", ds.EpochRange.Min.Format(time.RFC3339),
		"epoch_max", ds.EpochRange.Max.Format(time.RFC3339),
	)
	return ds, nil
}
