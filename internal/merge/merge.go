// Package merge concatenates loaded label sources and tallies them.
package merge

import (
	"context"
	"fmt"

	"github.com/verte-zerg/labelmerge/internal/labels"
	"github.com/verte-zerg/labelmerge/internal/model"
)

// Report is the result of one pipeline run, before anything is written.
type Report struct {
	Sources   []model.SourceResult
	Records   []model.LabelRecord
	ByDataset model.FrequencyTable
	ByMain    model.FrequencyTable
	BySub     model.FrequencyTable
}

// Total returns the number of combined records.
func (r Report) Total() int {
	return len(r.Records)
}

// Empty reports whether no source contributed a record.
func (r Report) Empty() bool {
	return len(r.Records) == 0
}

// Tables returns the frequency tables keyed by their history kind.
func (r Report) Tables() map[string]model.FrequencyTable {
	return map[string]model.FrequencyTable{
		model.CountDataset: r.ByDataset,
		model.CountMain:    r.ByMain,
		model.CountSub:     r.BySub,
	}
}

// Diagnostics lists one message per source that did not load records.
func (r Report) Diagnostics() []string {
	var out []string
	for _, src := range r.Sources {
		switch src.Status {
		case model.StatusMissing:
			out = append(out, fmt.Sprintf("file not found: %s", src.Spec.Path))
		case model.StatusFailed:
			out = append(out, fmt.Sprintf("error reading %s: %v", src.Spec.Path, src.Err))
		case model.StatusEmpty:
			out = append(out, fmt.Sprintf("no records loaded from %s", src.Spec.Path))
		}
	}
	return out
}

// Merge concatenates source records in order and builds the frequency tables.
func Merge(results []model.SourceResult) Report {
	report := Report{
		Sources:   results,
		ByDataset: model.FrequencyTable{},
		ByMain:    model.FrequencyTable{},
		BySub:     model.FrequencyTable{},
	}
	total := 0
	for _, res := range results {
		total += len(res.Records)
	}
	report.Records = make([]model.LabelRecord, 0, total)
	for _, res := range results {
		for _, rec := range res.Records {
			report.Records = append(report.Records, rec)
			report.ByDataset.Add(rec.Dataset)
			report.ByMain.Add(rec.MainCategory)
			report.BySub.Add(rec.SubCategory)
		}
	}
	return report
}

// Run loads every source in order and merges the results.
func Run(ctx context.Context, sources []model.SourceSpec, baseDir string) (Report, error) {
	results := make([]model.SourceResult, 0, len(sources))
	for _, spec := range sources {
		if err := ctx.Err(); err != nil {
			return Report{}, fmt.Errorf("run cancelled: %w", err)
		}
		results = append(results, labels.Load(spec, baseDir))
	}
	return Merge(results), nil
}
