package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/DrSkyle/cloudgov/pkg/config"
	"github.com/DrSkyle/cloudgov/pkg/engine/aggregate"
	"github.com/DrSkyle/cloudgov/pkg/engine/model"
)

// Format selects a renderer.
type Format string

const (
	FormatJSON    Format = "json"
	FormatCSV     Format = "csv"
	FormatSummary Format = "summary"
)

// ErrNoCostData is returned when CSV is requested for a report without a cost section.
var ErrNoCostData = errors.New("report has no monthly cost data")

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatCSV, FormatSummary:
		return f, nil
	}
	return "", &config.ConfigurationError{Field: "format", Reason: fmt.Sprintf("%q is not one of json, csv, summary", s)}
}

// Render writes rep in the requested format.
func Render(w io.Writer, rep *model.AnalysisReport, f Format, theme Theme) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, rep)
	case FormatCSV:
		return WriteCSV(w, rep)
	case FormatSummary:
		return RenderSummary(w, rep, theme)
	}
	return fmt.Errorf("unknown format %q", f)
}

// WriteJSON writes the detailed view.
func WriteJSON(w io.Writer, rep *model.AnalysisReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// WriteCSV writes one row per billing category, most expensive first.
func WriteCSV(w io.Writer, rep *model.AnalysisReport) error {
	if rep.Cost == nil || rep.Cost.Monthly == nil {
		return ErrNoCostData
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"service", "cost", "usage"}); err != nil {
		return err
	}
	for _, r := range aggregate.Ranked(*rep.Cost.Monthly, 0) {
		record := []string{
			r.Service,
			aggregate.Round2(r.Cost).StringFixed(2),
			aggregate.Round2(r.Usage).StringFixed(2),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
