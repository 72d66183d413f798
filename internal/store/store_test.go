package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/labelmerge/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "history", "history.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func sampleRun(i int) model.RunRecord {
	start := time.Unix(0, 0).UTC().Add(time.Duration(i) * time.Minute)
	return model.RunRecord{
		StartedAt:  start,
		EndedAt:    start.Add(2 * time.Second),
		OutputPath: "combined_dataset_labels.csv",
		Total:      3 + i,
		Sources: []model.RunSource{
			{Path: "graffitti_labels.csv", Dataset: "graffitti_labels", Status: model.StatusLoaded, Accepted: 2 + i},
			{Path: "trash_labels.csv", Dataset: "trash_labels", Status: model.StatusMissing, Message: "file not found: trash_labels.csv"},
			{Path: "potholes_labels.csv", Dataset: "potholes_labels", Status: model.StatusLoaded, Accepted: 1},
		},
		Counts: map[string]model.FrequencyTable{
			model.CountDataset: {"graffitti_labels": 2 + i, "potholes_labels": 1},
			model.CountMain:    {"graffiti": 2 + i, "pothole": 1},
		},
	}
}

func TestInsertAndListRuns(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := st.InsertRun(ctx, sampleRun(i))
		if err != nil {
			t.Fatalf("insert run: %v", err)
		}
		if id == "" {
			t.Fatalf("expected generated run id")
		}
		ids = append(ids, id)
	}

	runs, err := st.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	if runs[0].ID != ids[0] || runs[2].Total != 5 {
		t.Fatalf("unexpected runs: %+v", runs)
	}

	recent, err := st.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("list recent runs: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != ids[1] || recent[1].ID != ids[2] {
		t.Fatalf("unexpected recent runs: %+v", recent)
	}
}

func TestListSourcesAndCounts(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	run := sampleRun(1)
	run.ID = "fixed-id"
	id, err := st.InsertRun(ctx, run)
	if err != nil {
		t.Fatalf("insert run: %v", err)
	}
	if id != "fixed-id" {
		t.Fatalf("expected provided id to be kept, got %q", id)
	}

	sources, err := st.ListSources(ctx, id)
	if err != nil {
		t.Fatalf("list sources: %v", err)
	}
	if len(sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(sources))
	}
	if sources[1].Status != model.StatusMissing || sources[1].Message == "" {
		t.Fatalf("unexpected second source: %+v", sources[1])
	}
	if sources[2].Path != "potholes_labels.csv" {
		t.Fatalf("expected source order to be preserved, got %+v", sources)
	}

	counts, err := st.ListCounts(ctx, []string{id}, model.CountDataset)
	if err != nil {
		t.Fatalf("list counts: %v", err)
	}
	if counts[id]["graffitti_labels"] != 3 || counts[id]["potholes_labels"] != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
	none, err := st.ListCounts(ctx, []string{id}, model.CountSub)
	if err != nil {
		t.Fatalf("list sub counts: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no sub counts, got %+v", none)
	}
}
