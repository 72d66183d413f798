package output

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/labelmerge/internal/merge"
	"github.com/verte-zerg/labelmerge/internal/model"
)

func sampleRecords() []model.LabelRecord {
	return []model.LabelRecord{
		{ImageFile: "img001.jpg", MainCategory: "graffiti", SubCategory: "tag", Dataset: "graffitti_labels"},
		{ImageFile: "t 1.jpg", MainCategory: "trash", SubCategory: "bottle, glass", Dataset: "trash_labels"},
	}
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "combined_dataset_labels.csv")
	if err := WriteCSV(path, sampleRecords()); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	want := "image_file,main_category,sub_category,dataset\r\n" +
		"img001.jpg,graffiti,tag,graffitti_labels\r\n" +
		"t 1.jpg,trash,\"bottle, glass\",trash_labels\r\n"
	if string(data) != want {
		t.Fatalf("unexpected output:\n%q\nwant:\n%q", data, want)
	}

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(rows) != 3 || rows[2][2] != "bottle, glass" {
		t.Fatalf("unexpected parsed rows: %v", rows)
	}
}

func TestWriteCSVOverwritesAndIsDeterministic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "combined_dataset_labels.csv")
	if err := os.WriteFile(path, []byte("stale content that is longer than the new file\n"), 0o644); err != nil {
		t.Fatalf("seed output: %v", err)
	}
	if err := WriteCSV(path, sampleRecords()); err != nil {
		t.Fatalf("first write: %v", err)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read first: %v", err)
	}
	if err := WriteCSV(path, sampleRecords()); err != nil {
		t.Fatalf("second write: %v", err)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read second: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("expected byte-identical reruns")
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the output file, found %d entries", len(entries))
	}
}

func TestWriteSummary(t *testing.T) {
	report := merge.Merge([]model.SourceResult{
		{
			Spec:    model.SourceSpec{Path: "graffitti_labels.csv"},
			Dataset: "graffitti_labels",
			Status:  model.StatusLoaded,
			Rows:    3,
			Dropped: 1,
			Records: sampleRecords()[:1],
		},
		{
			Spec:    model.SourceSpec{Path: "trash_labels.csv"},
			Dataset: "trash_labels",
			Status:  model.StatusMissing,
		},
	})
	path := filepath.Join(t.TempDir(), "summary.yaml")
	if err := WriteSummary(path, report, "combined_dataset_labels.csv"); err != nil {
		t.Fatalf("WriteSummary failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	var got Summary
	if err := yaml.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if got.Total != 1 || got.Output != "combined_dataset_labels.csv" {
		t.Fatalf("unexpected summary header: %+v", got)
	}
	if len(got.Sources) != 2 || got.Sources[0].Dropped != 1 || got.Sources[1].Status != "missing" {
		t.Fatalf("unexpected sources: %+v", got.Sources)
	}
	if got.ByDataset["graffitti_labels"] != 1 || got.ByMain["graffiti"] != 1 || got.BySub["tag"] != 1 {
		t.Fatalf("unexpected tables: %+v", got)
	}
}
