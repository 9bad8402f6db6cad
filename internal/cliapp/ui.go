package cliapp

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	coreapp "weave/internal/core/app"
	"weave/internal/data/history"
	"weave/internal/engine/unit"
)

const maxListedDiagnostics = 20

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

func hasErrors(r *coreapp.Result) bool {
	for _, d := range r.Diagnostics {
		if d.Category == unit.CategoryError {
			return true
		}
	}
	return false
}

func renderSummary(r *coreapp.Result) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("weave build"))
	b.WriteString(" ")
	b.WriteString(statusStyle.Render(fmt.Sprintf("%s in %s", shortID(r.ID), r.Duration.Round(1e6))))
	b.WriteString("\n")

	fmt.Fprintf(&b, "  units: %d added, %d updated, %d unchanged, %d deleted\n",
		r.Counts[unit.StateAdded], r.Counts[unit.StateUpdated], r.Counts[unit.StateSame], r.Counts[unit.StateDeleted])
	fmt.Fprintf(&b, "  files: %d written, %d removed\n", len(r.Written), len(r.Removed))

	if r.Fallback {
		b.WriteString("  ")
		b.WriteString(warningStyle.Render("unit order fell back to reversed input"))
		b.WriteString("\n")
		for _, cycle := range r.Cycles {
			fmt.Fprintf(&b, "    cycle: %s\n", strings.Join(cycle, " -> "))
		}
	}

	if len(r.Diagnostics) == 0 {
		b.WriteString("  ")
		b.WriteString(successStyle.Render("no diagnostics"))
		return b.String()
	}

	b.WriteString("  ")
	b.WriteString(errorStyle.Render(fmt.Sprintf("%d diagnostics", len(r.Diagnostics))))
	for i, d := range r.Diagnostics {
		if i == maxListedDiagnostics {
			fmt.Fprintf(&b, "\n    ... %d more", len(r.Diagnostics)-maxListedDiagnostics)
			break
		}
		b.WriteString("\n    ")
		b.WriteString(d.String())
	}
	return b.String()
}

func renderTrend(report history.TrendReport) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("weave history"))
	b.WriteString(" ")
	b.WriteString(statusStyle.Render(fmt.Sprintf("%d cycles, avg %s, %d fallbacks",
		report.CycleCount, report.AvgDuration.Round(1e6), report.Fallbacks)))
	for _, p := range report.Points {
		delta := fmt.Sprintf("%+d", p.DeltaDiagnostics)
		switch {
		case p.DeltaDiagnostics > 0:
			delta = errorStyle.Render(delta)
		case p.DeltaDiagnostics < 0:
			delta = successStyle.Render(delta)
		}
		fmt.Fprintf(&b, "\n  %s  %s  changed %d (%.0f%%)  diagnostics %d (%s)  %s",
			p.Timestamp.Local().Format("2006-01-02 15:04:05"),
			shortID(p.ID),
			p.Changed, p.ChangedPct,
			p.Diagnostics, delta,
			p.Duration.Round(1e6),
		)
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
