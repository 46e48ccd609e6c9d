package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/star/conjscreen/internal/tle"
)

// CatalogListing describes a loaded catalog for operators choosing a target.
type CatalogListing struct {
	Source     string         `json:"source"`
	FetchedAt  time.Time      `json:"fetched_at"`
	Objects    int            `json:"objects"`
	EpochRange tle.EpochRange `json:"epoch_range"`
	Entries    []tle.TLEEntry `json:"entries"`
}

// NewCatalogListing lists the entries of ds, limited to the first limit (all when
// limit <= 0).
func NewCatalogListing(ds *tle.TLEDataset, limit int) CatalogListing {
	entries := ds.Satellites
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return CatalogListing{
		Source:     ds.Source,
		FetchedAt:  ds.FetchedAt,
		Objects:    len(ds.Satellites),
		EpochRange: ds.EpochRange,
		Entries:    entries,
	}
}

// RenderCatalog writes l to w in format f.
func RenderCatalog(w io.Writer, l CatalogListing, f Format) error {
	switch f {
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"norad_id", "name", "epoch"}); err != nil {
			return err
		}
		for _, e := range l.Entries {
			if err := cw.Write([]string{strconv.Itoa(e.NORADID), e.Name, e.Epoch.UTC().Format(time.RFC3339)}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(l)
	case FormatTable, "":
		muted := lipgloss.NewStyle().Foreground(dim)
		fmt.Fprintf(w, "Catalog %s: %d objects\n", l.Source, l.Objects)
		fmt.Fprintln(w, muted.Render(fmt.Sprintf("fetched %s  epochs %s .. %s",
			l.FetchedAt.UTC().Format(time.RFC3339),
			l.EpochRange.Min.UTC().Format(time.RFC3339),
			l.EpochRange.Max.UTC().Format(time.RFC3339))))

		rows := make([][]string, 0, len(l.Entries))
		for _, e := range l.Entries {
			rows = append(rows, []string{strconv.Itoa(e.NORADID), e.Name, e.Epoch.UTC().Format(time.RFC3339)})
		}
		_, err := fmt.Fprintln(w, styledTable([]string{"NORAD", "NAME", "EPOCH (UTC)"}, rows))
		return err
	default:
		return fmt.Errorf("unknown output format %q", f)
	}
}
