package output

import (
	"bufio"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/labelmerge/internal/merge"
	"github.com/verte-zerg/labelmerge/internal/model"
)

// Summary is the YAML description of a combined label table.
type Summary struct {
	Output    string          `yaml:"output"`
	Total     int             `yaml:"total"`
	Sources   []SourceSummary `yaml:"sources"`
	ByDataset map[string]int  `yaml:"by_dataset"`
	ByMain    map[string]int  `yaml:"by_main_category"`
	BySub     map[string]int  `yaml:"by_sub_category"`
}

// SourceSummary describes one source of the run.
type SourceSummary struct {
	Path     string `yaml:"path"`
	Dataset  string `yaml:"dataset"`
	Status   string `yaml:"status"`
	Rows     int    `yaml:"rows"`
	Accepted int    `yaml:"accepted"`
	Dropped  int    `yaml:"dropped"`
	Error    string `yaml:"error,omitempty"`
}

// BuildSummary converts a report into its YAML shape.
func BuildSummary(report merge.Report, outputPath string) Summary {
	s := Summary{
		Output:    outputPath,
		Total:     report.Total(),
		Sources:   make([]SourceSummary, 0, len(report.Sources)),
		ByDataset: copyTable(report.ByDataset),
		ByMain:    copyTable(report.ByMain),
		BySub:     copyTable(report.BySub),
	}
	for _, src := range report.Sources {
		entry := SourceSummary{
			Path:     src.Spec.Path,
			Dataset:  src.Dataset,
			Status:   string(src.Status),
			Rows:     src.Rows,
			Accepted: len(src.Records),
			Dropped:  src.Dropped,
		}
		if src.Err != nil {
			entry.Error = src.Err.Error()
		}
		s.Sources = append(s.Sources, entry)
	}
	return s
}

// WriteSummary writes the YAML summary of report to path.
func WriteSummary(path string, report merge.Report, outputPath string) error {
	summary := BuildSummary(report, outputPath)
	return writeAtomic(path, "summary-*.yaml", func(w *bufio.Writer) error {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(summary); err != nil {
			return fmt.Errorf("failed to encode summary: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to encode summary: %w", err)
		}
		return nil
	})
}

func copyTable(t model.FrequencyTable) map[string]int {
	out := make(map[string]int, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}
