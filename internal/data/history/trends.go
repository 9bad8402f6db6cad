package history

import (
	"fmt"
	"math"
	"sort"
	"time"
)

type TrendPoint struct {
	ID               string        `json:"id"`
	Timestamp        time.Time     `json:"timestamp"`
	Changed          int           `json:"changed"`
	Diagnostics      int           `json:"diagnostics"`
	Duration         time.Duration `json:"duration"`
	DeltaDiagnostics int           `json:"delta_diagnostics"`
	// ChangedPct is the share of units the engine had to see.
	ChangedPct float64 `json:"changed_pct"`
}

type TrendReport struct {
	Since       time.Time     `json:"since"`
	Until       time.Time     `json:"until"`
	CycleCount  int           `json:"cycle_count"`
	AvgDuration time.Duration `json:"avg_duration"`
	Fallbacks   int           `json:"fallbacks"`
	Points      []TrendPoint  `json:"points"`
}

// BuildTrendReport orders cycles oldest first and reports how diagnostics
// and the incremental share of work moved between them.
func BuildTrendReport(cycles []Cycle) (TrendReport, error) {
	if len(cycles) == 0 {
		return TrendReport{}, fmt.Errorf("no cycles available")
	}
	ordered := append([]Cycle(nil), cycles...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	var total time.Duration
	report := TrendReport{
		Since:      ordered[0].Timestamp,
		Until:      ordered[len(ordered)-1].Timestamp,
		CycleCount: len(ordered),
		Points:     make([]TrendPoint, 0, len(ordered)),
	}
	for i, c := range ordered {
		point := TrendPoint{
			ID:          c.ID,
			Timestamp:   c.Timestamp,
			Changed:     c.Changed(),
			Diagnostics: c.Diagnostics,
			Duration:    c.Duration,
		}
		if units := c.Added + c.Updated + c.Same; units > 0 {
			point.ChangedPct = round2(float64(c.Added+c.Updated) / float64(units) * 100)
		}
		if i > 0 {
			point.DeltaDiagnostics = c.Diagnostics - ordered[i-1].Diagnostics
		}
		if c.Fallback {
			report.Fallbacks++
		}
		total += c.Duration
		report.Points = append(report.Points, point)
	}
	report.AvgDuration = total / time.Duration(len(ordered))
	return report, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
