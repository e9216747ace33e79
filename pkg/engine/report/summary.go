package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/DrSkyle/cloudgov/pkg/engine/model"
	"github.com/charmbracelet/lipgloss"
)

// StyleFunc renders text the way lipgloss.Style.Render does.
type StyleFunc func(strs ...string) string

// Theme styles the summary view.
type Theme struct {
	Title StyleFunc
	Label StyleFunc
	Pass  StyleFunc
	Warn  StyleFunc
	Fail  StyleFunc
	Muted StyleFunc
}

// DefaultTheme uses the CLI palette.
func DefaultTheme() Theme {
	return Theme{
		Title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00FF99")).Render,
		Label: lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")).Render,
		Pass:  lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF99")).Render,
		Warn:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FFCC00")).Render,
		Fail:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF3366")).Render,
		Muted: lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).Render,
	}
}

// PlainTheme renders without escape sequences.
func PlainTheme() Theme {
	plain := func(strs ...string) string { return strings.Join(strs, " ") }
	return Theme{Title: plain, Label: plain, Pass: plain, Warn: plain, Fail: plain, Muted: plain}
}

func (t Theme) status(s model.Status) string {
	label := strings.ToUpper(string(s))
	switch s {
	case model.StatusPass:
		return t.Pass(label)
	case model.StatusWarning:
		return t.Warn(label)
	case model.StatusFail:
		return t.Fail(label)
	}
	return t.Muted(label)
}

// RenderSummary writes the short human-readable view.
func RenderSummary(w io.Writer, rep *model.AnalysisReport, t Theme) error {
	var b strings.Builder
	s := rep.Summary

	line := func(label, value string) {
		fmt.Fprintf(&b, "%s %s\n", t.Label(fmt.Sprintf("%-12s", label+":")), value)
	}

	b.WriteString(t.Title(fmt.Sprintf("cloudgov assessment: %s", rep.Environment)))
	b.WriteString("\n")
	line("Run", rep.RunID)
	line("Date", rep.AssessmentDate)
	line("Mode", string(rep.Mode))
	line("Status", t.status(s.OverallStatus))
	line("Score", fmt.Sprintf("%d/100", s.ComplianceScore))
	line("Findings", fmt.Sprintf("%d (%d of %d checks errored)", s.TotalFindings, s.ErroredChecks, s.TotalChecks))
	if s.TotalCost != nil {
		cost := "$" + s.TotalCost.StringFixed(2)
		if s.Trend != "" && s.TrendPercentage != nil {
			cost += fmt.Sprintf(", trend %s %s%%", s.Trend, s.TrendPercentage.StringFixed(2))
		}
		line("Cost", cost)
	}
	line("Savings", "$"+s.TotalEstimatedSavings.StringFixed(2)+" estimated monthly")
	line("Actions", fmt.Sprintf("%d planned, %d applied, %d failed", s.PlannedActions, s.AppliedActions, s.FailedActions))

	section := func(title string, results map[string]model.CheckResult) {
		if len(results) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n%s\n", t.Title(title))
		for _, k := range model.SortedKeys(results) {
			r := results[k]
			fmt.Fprintf(&b, "  %-20s %s %s\n", k, t.status(r.Status), t.Muted(detail(r)))
		}
	}
	section("Checks", rep.Checks)
	section("Optimizations", rep.Optimizations)

	if rep.Cost != nil && rep.Cost.Monthly != nil && len(rep.Cost.Monthly.TopN) > 0 {
		fmt.Fprintf(&b, "\n%s\n", t.Title("Top services"))
		for i, r := range rep.Cost.Monthly.TopN {
			fmt.Fprintf(&b, "  %d. %-30s $%s\n", i+1, r.Service, r.Cost.StringFixed(2))
		}
	}

	list := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n%s\n", t.Title(title))
		for i, item := range items {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, item)
		}
	}
	list("Priority actions", rep.PriorityActions)
	list("Action items", rep.ActionItems)

	_, err := io.WriteString(w, b.String())
	return err
}

func detail(r model.CheckResult) string {
	if r.Status == model.StatusError {
		return r.Error
	}
	d := fmt.Sprintf("%d findings", len(r.Findings))
	if r.EstimatedSavings != nil {
		d += fmt.Sprintf(", $%s/mo", r.EstimatedSavings.StringFixed(2))
	}
	return d
}
