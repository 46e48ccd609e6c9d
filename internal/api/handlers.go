package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/star/conjscreen/internal/cache"
	"github.com/star/conjscreen/internal/report"
	"github.com/star/conjscreen/internal/screening"
	"github.com/star/conjscreen/internal/timegrid"
	"github.com/star/conjscreen/internal/tle"
)

const maxRequestBytes = 64 << 10

// screenRequest is the body of POST /api/v1/screen. Omitted fields take the server
// defaults.
type screenRequest struct {
	TargetID    int        `json:"target_norad_id"`
	ThresholdKm *float64   `json:"threshold_km,omitempty"`
	FloorKm     *float64   `json:"floor_km,omitempty"`
	Horizon     string     `json:"horizon,omitempty"`
	Step        string     `json:"step,omitempty"`
	Epoch       *time.Time `json:"epoch,omitempty"`
}

type screenResponse struct {
	report.Summary
	Cached     bool  `json:"cached"`
	DurationMs int64 `json:"duration_ms"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// runConfig merges req over the server defaults.
func (req screenRequest) runConfig(def screening.Config) (screening.Config, error) {
	cfg := def
	if req.TargetID <= 0 {
		return cfg, fmt.Errorf("%w: target_norad_id is required", screening.ErrInvalidConfiguration)
	}
	cfg.TargetID = req.TargetID
	if req.ThresholdKm != nil {
		cfg.ThresholdKm = *req.ThresholdKm
	}
	if req.FloorKm != nil {
		cfg.FloorKm = *req.FloorKm
	}
	if req.Epoch != nil {
		cfg.Epoch = *req.Epoch
	}
	if req.Horizon != "" {
		d, err := time.ParseDuration(req.Horizon)
		if err != nil {
			return cfg, fmt.Errorf("%w: horizon: %v", screening.ErrInvalidConfiguration, err)
		}
		cfg.Horizon = d
	}
	if req.Step != "" {
		d, err := time.ParseDuration(req.Step)
		if err != nil {
			return cfg, fmt.Errorf("%w: step: %v", screening.ErrInvalidConfiguration, err)
		}
		cfg.Step = d
	}
	return cfg, nil
}

func screenHandler(logger *slog.Logger, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ds := deps.Store.Get()
		if ds == nil {
			writeError(w, http.StatusServiceUnavailable, "no catalog loaded")
			return
		}

		var req screenRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}

		cfg, err := req.runConfig(deps.Defaults.RunConfig(time.Now()))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		grid, err := timegrid.New(cfg.Epoch, cfg.Horizon, cfg.Step)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), deps.RunTimeout)
		defer cancel()

		start := time.Now()
		compute := func(ctx context.Context) (*screening.Report, error) {
			ctx, cancel := context.WithTimeout(ctx, deps.RunTimeout)
			defer cancel()
			return deps.Engine.ScreenCatalog(ctx, ds.Satellites, cfg)
		}

		var (
			rep    *screening.Report
			cached bool
		)
		if deps.RunCache != nil {
			key := cache.Key(ds.FetchedAt, cfg.TargetID, grid, cfg.Thresholds)
			rep, cached, err = deps.RunCache.GetOrCompute(ctx, key, compute)
		} else {
			rep, err = compute(ctx)
		}

		switch {
		case err == nil:
		case errors.Is(err, screening.ErrInvalidConfiguration):
			writeError(w, http.StatusBadRequest, err.Error())
			return
		case errors.Is(err, screening.ErrTargetNotFound):
			writeError(w, http.StatusNotFound, err.Error())
			return
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			writeError(w, http.StatusServiceUnavailable, "screening run cancelled")
			return
		default:
			logger.Error("screening run failed", "target_norad_id", cfg.TargetID, "error", err)
			writeError(w, http.StatusInternalServerError, "screening run failed")
			return
		}

		writeJSON(w, http.StatusOK, screenResponse{
			Summary:    report.Summarize(rep, deps.Tiers),
			Cached:     cached,
			DurationMs: time.Since(start).Milliseconds(),
		})
	}
}

type catalogResponse struct {
	Source     string         `json:"source"`
	FetchedAt  time.Time      `json:"fetched_at"`
	AgeSeconds float64        `json:"age_seconds"`
	Objects    int            `json:"objects"`
	EpochRange tle.EpochRange `json:"epoch_range"`
}

func catalogHandler(store *tle.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ds := store.Get()
		if ds == nil {
			writeError(w, http.StatusServiceUnavailable, "no catalog loaded")
			return
		}
		writeJSON(w, http.StatusOK, catalogResponse{
			Source:     ds.Source,
			FetchedAt:  ds.FetchedAt,
			AgeSeconds: store.AgeSeconds(),
			Objects:    len(ds.Satellites),
			EpochRange: ds.EpochRange,
		})
	}
}

func catalogObjectHandler(store *tle.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(r.PathValue("norad_id"))
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "norad_id must be a positive integer")
			return
		}
		ds := store.Get()
		if ds == nil {
			writeError(w, http.StatusServiceUnavailable, "no catalog loaded")
			return
		}
		entry, ok := ds.Lookup(id)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("object %d not in catalog", id))
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}

func catalogFetchHandler(logger *slog.Logger, refresh RefreshFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if refresh == nil {
			writeError(w, http.StatusNotFound, "catalog fetch is disabled")
			return
		}
		ds, err := refresh(r.Context())
		if err != nil {
			logger.Warn("catalog refresh failed", "error", err)
			writeError(w, http.StatusBadGateway, "catalog refresh failed: "+err.Error())
			return
		}
		writeJSON(w, http.StatusOK, catalogResponse{
			Source:     ds.Source,
			FetchedAt:  ds.FetchedAt,
			Objects:    len(ds.Satellites),
			EpochRange: ds.EpochRange,
		})
	}
}

func cacheStatsHandler(rc *cache.RunCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rc == nil {
			writeError(w, http.StatusNotFound, "run cache is disabled")
			return
		}
		writeJSON(w, http.StatusOK, rc.Stats())
	}
}
