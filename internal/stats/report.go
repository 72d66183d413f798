package stats

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/verte-zerg/labelmerge/internal/model"
	"github.com/verte-zerg/labelmerge/internal/store"
)

const (
	historyTimeLayout = "2006-01-02 15:04"
	shortIDLen        = 8
	maxCurveDatasets  = 4
)

// History contains recorded runs and their per-dataset counts, oldest first.
type History struct {
	Runs          []model.RunRecord
	DatasetCounts map[string]model.FrequencyTable
	LatestSources []model.RunSource
}

// BuildHistory loads the last runs from the store. A non-positive last loads
// every recorded run.
func BuildHistory(ctx context.Context, st *store.Store, last int) (History, error) {
	runs, err := st.ListRuns(ctx, last)
	if err != nil {
		return History{}, fmt.Errorf("failed to list runs: %w", err)
	}
	counts, err := st.ListCounts(ctx, runIDs(runs), model.CountDataset)
	if err != nil {
		return History{}, fmt.Errorf("failed to list dataset counts: %w", err)
	}
	h := History{Runs: runs, DatasetCounts: counts}
	if len(runs) > 0 {
		h.LatestSources, err = st.ListSources(ctx, runs[len(runs)-1].ID)
		if err != nil {
			return History{}, fmt.Errorf("failed to list run sources: %w", err)
		}
	}
	return h, nil
}

// Datasets returns the union of dataset counts over all runs.
func (h History) Datasets() model.FrequencyTable {
	out := model.FrequencyTable{}
	for _, table := range h.DatasetCounts {
		for k, n := range table {
			out[k] += n
		}
	}
	return out
}

// RenderHistoryTable prints one row per recorded run.
func RenderHistoryTable(w io.Writer, h History) error {
	if len(h.Runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded.")
		return err
	}
	headers := []string{"Run", "Ended", "Took", "Records", "Datasets", "Output"}
	rows := make([][]string, 0, len(h.Runs))
	for _, run := range h.Runs {
		rows = append(rows, []string{
			shortID(run.ID),
			run.EndedAt.Local().Format(historyTimeLayout),
			elapsed(run).String(),
			strconv.Itoa(run.Total),
			strconv.Itoa(len(h.DatasetCounts[run.ID])),
			run.OutputPath,
		})
	}
	for _, line := range formatTable(headers, rows, map[int]bool{2: true, 3: true, 4: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if len(h.LatestSources) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "\nLatest run sources:"); err != nil {
		return err
	}
	for _, src := range h.LatestSources {
		line := fmt.Sprintf("  %s: %s, %d accepted", src.Path, src.Status, src.Accepted)
		if src.Message != "" {
			line += " (" + src.Message + ")"
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderHistoryCurves plots total records and the largest datasets across runs.
// A window above one smooths each curve with a moving average.
func RenderHistoryCurves(w io.Writer, h History, window int) error {
	if len(h.Runs) == 0 {
		return nil
	}
	totals := make([]float64, len(h.Runs))
	for i, run := range h.Runs {
		totals[i] = float64(run.Total)
	}
	series := []Series{{Name: "total", Values: MovingAverage(totals, window)}}
	for _, dataset := range TopKeys(h.Datasets(), maxCurveDatasets) {
		values := make([]float64, len(h.Runs))
		for i, run := range h.Runs {
			values[i] = float64(h.DatasetCounts[run.ID][dataset])
		}
		series = append(series, Series{Name: dataset, Values: MovingAverage(values, window)})
	}

	title := "Records per run"
	if window > 1 {
		title = fmt.Sprintf("Records per run (moving average, window %d)", window)
	}
	if err := PlotSeries(w, title, series, 0, 0); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "Trends:"); err != nil {
		return err
	}
	rows := make([][]string, 0, len(series))
	for _, s := range series {
		rows = append(rows, []string{s.Name, Sparkline(s.Values)})
	}
	for _, line := range formatTable([]string{"Series", "Trend"}, rows, nil) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func runIDs(runs []model.RunRecord) []string {
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	return ids
}

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}

func elapsed(run model.RunRecord) time.Duration {
	return run.EndedAt.Sub(run.StartedAt).Round(time.Millisecond)
}
