package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Format selects an output encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatTable, FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, csv or json)", s)
	}
}

// Render writes s to w in format f.
func Render(w io.Writer, s Summary, f Format) error {
	switch f {
	case FormatCSV:
		return renderCSV(w, s)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case FormatTable, "":
		return renderTable(w, s)
	default:
		return fmt.Errorf("unknown output format %q", f)
	}
}

var csvHeader = []string{"rank", "norad_id", "name", "min_distance_km", "index", "time", "risk", "target_lat_deg", "target_lon_deg"}

func renderCSV(w io.Writer, s Summary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range s.Rows {
		lat, lon := "", ""
		if r.TargetSubPoint != nil {
			lat = strconv.FormatFloat(r.TargetSubPoint.LatDeg, 'f', 4, 64)
			lon = strconv.FormatFloat(r.TargetSubPoint.LonDeg, 'f', 4, 64)
		}
		rec := []string{
			strconv.Itoa(r.Rank),
			strconv.Itoa(r.NORADID),
			r.Name,
			strconv.FormatFloat(r.MinDistanceKm, 'f', 3, 64),
			strconv.Itoa(r.Index),
			r.Time.UTC().Format(time.RFC3339),
			string(r.Risk),
			lat,
			lon,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var (
	purple = lipgloss.Color("99")
	green  = lipgloss.Color("76")
	red    = lipgloss.Color("204")
	yellow = lipgloss.Color("214")
	dim    = lipgloss.Color("243")
	faint  = lipgloss.Color("238")
)

var statusColor = map[Status]lipgloss.Color{
	StatusGreen:  green,
	StatusYellow: yellow,
	StatusAmber:  yellow,
	StatusRed:    red,
}

func renderTable(w io.Writer, s Summary) error {
	status := lipgloss.NewStyle().Bold(true).Foreground(statusColor[s.Status]).Render(string(s.Status))
	muted := lipgloss.NewStyle().Foreground(dim)

	fmt.Fprintf(w, "Target %s (NORAD %d)  status %s\n", s.TargetName, s.TargetID, status)
	fmt.Fprintln(w, muted.Render(fmt.Sprintf("window %s .. %s  step %s  distance (%.3g, %.3g) km",
		s.Epoch.UTC().Format(time.RFC3339), s.WindowEnd.UTC().Format(time.RFC3339), s.Step, s.FloorKm, s.ThresholdKm)))
	fmt.Fprintln(w, muted.Render(fmt.Sprintf("%d/%d candidates processed, %d conjunctions, %d rejected, %d propagation failures",
		s.Processed, s.Candidates, len(s.Rows), s.Rejected, s.Failures)))

	if len(s.Rows) > 0 {
		rows := make([][]string, 0, len(s.Rows))
		for _, r := range s.Rows {
			rows = append(rows, []string{
				strconv.Itoa(r.Rank),
				strconv.Itoa(r.NORADID),
				r.Name,
				strconv.FormatFloat(r.MinDistanceKm, 'f', 2, 64),
				r.Time.UTC().Format(time.RFC3339),
				string(r.Risk),
			})
		}
		fmt.Fprintln(w, styledTable([]string{"#", "NORAD", "NAME", "MIN KM", "TCA (UTC)", "RISK"}, rows))
	}

	_, err := fmt.Fprintln(w, s.Recommendation)
	return err
}

func styledTable(headers []string, rows [][]string) string {
	headerStyle := lipgloss.NewStyle().Foreground(purple).Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(faint)).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row%2 == 0:
				return cellStyle
			default:
				return cellStyle.Foreground(dim)
			}
		}).
		Headers(headers...).
		Rows(rows...).
		String()
}
