// Package stats renders merge reports and run history as text.
package stats

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/verte-zerg/labelmerge/internal/merge"
	"github.com/verte-zerg/labelmerge/internal/model"
)

const sparkChars = " .:-=+*#%@"

// RenderLoadStatus prints one status line per source.
func RenderLoadStatus(w io.Writer, sources []model.SourceResult) error {
	for _, src := range sources {
		if _, err := fmt.Fprintln(w, StatusLine(src)); err != nil {
			return err
		}
	}
	return nil
}

// StatusLine describes how a source loaded.
func StatusLine(src model.SourceResult) string {
	switch src.Status {
	case model.StatusLoaded:
		return fmt.Sprintf("Loaded %d records from %s", len(src.Records), src.Spec.Path)
	case model.StatusEmpty:
		return fmt.Sprintf("Warning: no records loaded from %s", src.Spec.Path)
	case model.StatusMissing:
		return fmt.Sprintf("Warning: file not found: %s", src.Spec.Path)
	default:
		return fmt.Sprintf("Error reading %s: %v", src.Spec.Path, src.Err)
	}
}

// RenderTotals prints the combined record count.
func RenderTotals(w io.Writer, report merge.Report) error {
	_, err := fmt.Fprintf(w, "Total records collected: %d\n", report.Total())
	return err
}

// RenderFrequencies prints the three frequency tables with keys in ascending order.
func RenderFrequencies(w io.Writer, report merge.Report) error {
	if _, err := fmt.Fprintln(w, "Dataset Summary:"); err != nil {
		return err
	}
	sections := []struct {
		title string
		table model.FrequencyTable
	}{
		{"By Dataset:", report.ByDataset},
		{"By Main Category:", report.ByMain},
		{"By Sub Category:", report.BySub},
	}
	for _, sec := range sections {
		if _, err := fmt.Fprintf(w, "\n%s\n", sec.title); err != nil {
			return err
		}
		for _, key := range sec.table.Keys() {
			if _, err := fmt.Fprintf(w, "  %s: %d images\n", key, sec.table[key]); err != nil {
				return err
			}
		}
	}
	return nil
}

// RenderReady prints the closing line of a successful run.
func RenderReady(w io.Writer, report merge.Report) error {
	_, err := fmt.Fprintf(w, "Ready for ML training with %d labeled images!\n", report.Total())
	return err
}

// RenderNoData prints the notice for a run where no source contributed records.
func RenderNoData(w io.Writer) error {
	_, err := fmt.Fprintln(w, "No data to combine!")
	return err
}

// RenderSourcesTable prints the configured sources and whether each exists.
func RenderSourcesTable(w io.Writer, specs []model.SourceSpec, exists func(model.SourceSpec) bool) error {
	if len(specs) == 0 {
		_, err := fmt.Fprintln(w, "No sources configured.")
		return err
	}
	headers := []string{"Path", "Dataset", "Main column", "Sub column", "File"}
	rows := make([][]string, 0, len(specs))
	for _, spec := range specs {
		state := "missing"
		if exists(spec) {
			state = "present"
		}
		rows = append(rows, []string{spec.Path, spec.Dataset(), spec.MainField, spec.SubField, state})
	}
	for _, line := range formatTable(headers, rows, nil) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal := values[0]
	maxVal := values[0]
	for _, v := range values[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}
