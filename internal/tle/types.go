// Package tle loads the orbital-element catalog that screening runs consume: it parses
// NORAD three-line element sets, keeps the current dataset in memory, fetches fresh data
// over HTTP and keeps a few recent downloads on disk.
package tle

import (
	"log/slog"
	"time"
)

// TLEEntry is one catalog object. Line1 and Line2 are the opaque element set; only the
// propagation package interprets them.
type TLEEntry struct {
	NORADID int       `json:"norad_id"`
	Name    string    `json:"name"`
	Epoch   time.Time `json:"epoch"`
	Line1   string    `json:"line1"`
	Line2   string    `json:"line2"`
}

// EpochRange represents the minimum and maximum epoch times in a dataset.
type EpochRange struct {
	Min time.Time `json:"min"`
	Max time.Time `json:"max"`
}

// TLEDataset is an immutable catalog snapshot. NORAD IDs are unique within it.
type TLEDataset struct {
	Source     string
	FetchedAt  time.Time
	EpochRange EpochRange
	Satellites []TLEEntry
}

// NewDataset builds a snapshot from parsed entries. Later entries repeating an already
// seen NORAD ID are dropped so identifiers stay unique.
func NewDataset(source string, fetchedAt time.Time, entries []TLEEntry, logger *slog.Logger) *TLEDataset {
	seen := make(map[int]struct{}, len(entries))
	sats := make([]TLEEntry, 0, len(entries))
	var er EpochRange

	for _, e := range entries {
		if _, dup := seen[e.NORADID]; dup {
			logger.Warn("dropping duplicate catalog entry", "norad_id", e.NORADID, "name", e.Name)
			continue
		}
		seen[e.NORADID] = struct{}{}
		sats = append(sats, e)

		if er.Min.IsZero() || e.Epoch.Before(er.Min) {
			er.Min = e.Epoch
		}
		if er.Max.IsZero() || e.Epoch.After(er.Max) {
			er.Max = e.Epoch
		}
	}

	return &TLEDataset{
		Source:     source,
		FetchedAt:  fetchedAt,
		EpochRange: er,
		Satellites: sats,
	}
}

// Lookup returns the entry with the given NORAD ID.
func (ds *TLEDataset) Lookup(noradID int) (TLEEntry, bool) {
	for _, e := range ds.Satellites {
		if e.NORADID == noradID {
			return e, true
		}
	}
	return TLEEntry{}, false
}
