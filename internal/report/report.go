// Package report turns a screening report into something an operator reads: a risk
// tier per conjunction, an overall status, a recommendation, and table/CSV/JSON output.
package report

import (
	"fmt"
	"time"

	"github.com/star/conjscreen/internal/screening"
	"github.com/star/conjscreen/internal/transform"
)

// Risk grades a single conjunction by miss distance.
type Risk string

const (
	RiskHigh   Risk = "HIGH"
	RiskMedium Risk = "MEDIUM"
	RiskLow    Risk = "LOW"
)

// Status is the overall outcome of a run.
type Status string

const (
	StatusGreen  Status = "GREEN"  // nothing inside the threshold
	StatusYellow Status = "YELLOW" // only low-risk conjunctions
	StatusAmber  Status = "AMBER"  // at least one medium-risk conjunction
	StatusRed    Status = "RED"    // at least one high-risk conjunction
)

// Tiers are the upper bounds (km, exclusive) of the high and medium risk grades.
type Tiers struct {
	HighKm   float64 `env:"HIGH_KM" yaml:"high_km"`
	MediumKm float64 `env:"MEDIUM_KM" yaml:"medium_km"`
}

// DefaultTiers: under 25 km is high risk, under 50 km medium.
var DefaultTiers = Tiers{HighKm: 25, MediumKm: 50}

// Classify grades a miss distance.
func (t Tiers) Classify(km float64) Risk {
	switch {
	case km < t.HighKm:
		return RiskHigh
	case km < t.MediumKm:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Row is one ranked conjunction.
type Row struct {
	Rank int `json:"rank"`
	screening.Result
	Risk Risk `json:"risk"`
	// TargetSubPoint is the ground point under the target at the time of closest approach.
	TargetSubPoint *transform.GeodeticPoint `json:"target_sub_point,omitempty"`
}

// Summary is the presentation model of a screening report.
type Summary struct {
	TargetID       int           `json:"target_norad_id"`
	TargetName     string        `json:"target_name"`
	Epoch          time.Time     `json:"epoch"`
	WindowEnd      time.Time     `json:"window_end"`
	Horizon        time.Duration `json:"horizon_ns"`
	Step           time.Duration `json:"step_ns"`
	ThresholdKm    float64       `json:"threshold_km"`
	FloorKm        float64       `json:"floor_km"`
	Status         Status        `json:"status"`
	Recommendation string        `json:"recommendation"`
	Candidates     int           `json:"candidates"`
	Processed      int           `json:"processed"`
	Rejected       int           `json:"rejected"`
	Failures       int           `json:"failures"`
	FailedIDs      []int         `json:"failed_ids,omitempty"`
	Rows           []Row         `json:"conjunctions"`
}

// Summarize ranks rep's results, grades them with tiers and derives the status and
// recommendation. rep.Results keeps its order; Rank is 1-based.
func Summarize(rep *screening.Report, tiers Tiers) Summary {
	s := Summary{
		TargetID:    rep.Target.NORADID,
		TargetName:  rep.Target.Name,
		Epoch:       rep.Grid.Epoch,
		WindowEnd:   rep.Grid.End(),
		Horizon:     rep.Grid.Horizon(),
		Step:        rep.Grid.Step,
		ThresholdKm: rep.Thresholds.ThresholdKm,
		FloorKm:     rep.Thresholds.FloorKm,
		Candidates:  rep.Total,
		Processed:   rep.Processed(),
		Rejected:    rep.Rejected,
		Failures:    rep.Failures,
		FailedIDs:   rep.FailedIDs,
		Rows:        make([]Row, 0, len(rep.Results)),
		Status:      StatusGreen,
	}

	for i, r := range rep.Results {
		row := Row{Rank: i + 1, Result: r, Risk: tiers.Classify(r.MinDistanceKm)}
		if r.Index >= 0 && r.Index < len(rep.TargetPath) {
			p := transform.SubPoint(rep.TargetPath[r.Index], r.Time)
			row.TargetSubPoint = &p
		}
		s.Rows = append(s.Rows, row)
		s.Status = worse(s.Status, statusFor(row.Risk))
	}

	s.Recommendation = recommend(s, tiers)
	return s
}

func statusFor(r Risk) Status {
	switch r {
	case RiskHigh:
		return StatusRed
	case RiskMedium:
		return StatusAmber
	default:
		return StatusYellow
	}
}

var severity = map[Status]int{StatusGreen: 0, StatusYellow: 1, StatusAmber: 2, StatusRed: 3}

func worse(a, b Status) Status {
	if severity[b] > severity[a] {
		return b
	}
	return a
}

func recommend(s Summary, tiers Tiers) string {
	if len(s.Rows) == 0 {
		return fmt.Sprintf("No objects predicted within %.1f km of %s. No action required.", s.ThresholdKm, s.TargetName)
	}

	closest := s.Rows[0]
	switch closest.Risk {
	case RiskHigh:
		return fmt.Sprintf("%s passes within %.2f km of %s at %s (high risk). A debris avoidance maneuver is recommended.",
			closest.Name, closest.MinDistanceKm, s.TargetName, closest.Time.Format(time.RFC3339))
	case RiskMedium:
		return fmt.Sprintf("%s passes within %.2f km of %s at %s (medium risk). Monitor closely and prepare a maneuver if the prediction tightens.",
			closest.Name, closest.MinDistanceKm, s.TargetName, closest.Time.Format(time.RFC3339))
	default:
		return fmt.Sprintf("%d objects inside %.1f km; closest is %s at %.2f km (beyond %.0f km). Continue routine monitoring.",
			len(s.Rows), s.ThresholdKm, closest.Name, closest.MinDistanceKm, tiers.MediumKm)
	}
}
