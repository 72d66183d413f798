package labels

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/verte-zerg/labelmerge/internal/model"
)

func writeSource(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestAccept(t *testing.T) {
	tests := []struct {
		image, main, sub string
		want             bool
	}{
		{"img001.jpg", "graffiti", "tag", true},
		{"", "graffiti", "tag", false},
		{"img001.jpg", "", "tag", false},
		{"img001.jpg", "graffiti", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		if got := Accept(tt.image, tt.main, tt.sub); got != tt.want {
			t.Errorf("Accept(%q, %q, %q) = %v, want %v", tt.image, tt.main, tt.sub, got, tt.want)
		}
	}
}

func TestLoadGraffitiExample(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "graffitti_labels.csv", "image_file,main_categories,sub_categories\nimg001.jpg,graffiti,tag\n")

	spec := model.SourceSpec{Path: "graffitti_labels.csv", MainField: "main_categories", SubField: "sub_categories"}
	res := Load(spec, dir)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Status != model.StatusLoaded {
		t.Fatalf("expected loaded status, got %s", res.Status)
	}
	want := model.LabelRecord{ImageFile: "img001.jpg", MainCategory: "graffiti", SubCategory: "tag", Dataset: "graffitti_labels"}
	if len(res.Records) != 1 || res.Records[0] != want {
		t.Fatalf("unexpected records: %+v", res.Records)
	}
}

func TestLoadDropsIncompleteRows(t *testing.T) {
	dir := t.TempDir()
	content := strings.Join([]string{
		"id,image_file,main_category,sub_category,notes",
		"1, a.jpg , trash , bottle ,x",
		"2,,trash,bottle,missing image",
		"3,b.jpg,   ,bottle,blank main",
		"4,c.jpg,trash,,missing sub",
		"5,d.jpg",
		"6,e.jpg,trash,can,",
	}, "\n") + "\n"
	writeSource(t, dir, "trash_labels.csv", content)

	spec := model.SourceSpec{Path: "trash_labels.csv", MainField: "main_category", SubField: "sub_category"}
	res := Load(spec, dir)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Rows != 6 {
		t.Fatalf("expected 6 rows, got %d", res.Rows)
	}
	if res.Dropped != 4 {
		t.Fatalf("expected 4 dropped rows, got %d", res.Dropped)
	}
	if len(res.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(res.Records))
	}
	if res.Records[0].ImageFile != "a.jpg" || res.Records[0].MainCategory != "trash" || res.Records[0].SubCategory != "bottle" {
		t.Fatalf("expected trimmed first record, got %+v", res.Records[0])
	}
	if res.Records[1].ImageFile != "e.jpg" {
		t.Fatalf("unexpected second record: %+v", res.Records[1])
	}
}

func TestLoadMissingFile(t *testing.T) {
	spec := model.SourceSpec{Path: "trash_labels.csv", MainField: "main_category", SubField: "sub_category"}
	res := Load(spec, t.TempDir())
	if res.Status != model.StatusMissing {
		t.Fatalf("expected missing status, got %s", res.Status)
	}
	if !errors.Is(res.Err, ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", res.Err)
	}
	if len(res.Records) != 0 {
		t.Fatalf("expected no records")
	}
}

func TestLoadReadFailure(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"bad_utf8.csv":   "image_file,main_category,sub_category\na.jpg,trash,bottle\nb.jpg,tr\xffsh,can\n",
		"bad_header.csv": "image_file,main_\xffcategory,sub_category\na.jpg,trash,bottle\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			writeSource(t, dir, name, content)
			res := Load(model.SourceSpec{Path: name, MainField: "main_category", SubField: "sub_category"}, dir)
			if res.Status != model.StatusFailed {
				t.Fatalf("expected failed status, got %s", res.Status)
			}
			var readErr *SourceReadError
			if !errors.As(res.Err, &readErr) {
				t.Fatalf("expected SourceReadError, got %v", res.Err)
			}
			if readErr.Path != name {
				t.Fatalf("expected path %q, got %q", name, readErr.Path)
			}
			if len(res.Records) != 0 {
				t.Fatalf("expected no records from a failed source, got %d", len(res.Records))
			}
		})
	}
}

func TestReadKeepsLiteralQuotes(t *testing.T) {
	spec := model.SourceSpec{Path: "graffitti_labels.csv", MainField: "main_categories", SubField: "sub_categories"}
	input := "image_file,main_categories,sub_categories\n" +
		"img001.jpg,graffiti,tag\n" +
		"img\"002.jpg,graffiti,6\" letters\n" +
		"\"img003.jpg\",graffiti,\"say \"\"hi\"\"\"\n"
	records, err := Read(strings.NewReader(input), spec)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d: %+v", len(records), records)
	}
	if records[1].ImageFile != "img\"002.jpg" || records[1].SubCategory != "6\" letters" {
		t.Fatalf("expected bare quotes kept as literal characters, got %+v", records[1])
	}
	if records[2].ImageFile != "img003.jpg" || records[2].SubCategory != "say \"hi\"" {
		t.Fatalf("unexpected quoted record: %+v", records[2])
	}
}

func TestLoadUnterminatedQuote(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "trash_labels.csv", "image_file,main_category,sub_category\nz.jpg,trash,can\n\"a.jpg,trash,bottle\nb.jpg,trash,can\n")
	res := Load(model.SourceSpec{Path: "trash_labels.csv", MainField: "main_category", SubField: "sub_category"}, dir)
	if res.Status != model.StatusLoaded || res.Err != nil {
		t.Fatalf("expected loaded status, got %s (%v)", res.Status, res.Err)
	}
	if len(res.Records) != 1 || res.Records[0].ImageFile != "z.jpg" {
		t.Fatalf("expected only the row before the open quote, got %+v", res.Records)
	}
	if res.Rows != 2 || res.Dropped != 1 {
		t.Fatalf("expected the quoted remainder as one dropped row, got rows=%d dropped=%d", res.Rows, res.Dropped)
	}
}

func TestLoadEmptyAndHeaderOnly(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "empty.csv", "")
	writeSource(t, dir, "header.csv", "image_file,main_category,sub_category\n")
	for _, name := range []string{"empty.csv", "header.csv"} {
		res := Load(model.SourceSpec{Path: name, MainField: "main_category", SubField: "sub_category"}, dir)
		if res.Err != nil {
			t.Fatalf("%s: unexpected error: %v", name, res.Err)
		}
		if res.Status != model.StatusEmpty {
			t.Fatalf("%s: expected empty status, got %s", name, res.Status)
		}
	}
}

func TestLoadUnknownColumnsYieldNothing(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "potholes_labels.csv", "image_file,main_category,sub_category\na.jpg,pothole,deep\n")
	spec := model.SourceSpec{Path: "potholes_labels.csv", MainField: "main_categories", SubField: "sub_categories"}
	res := Load(spec, dir)
	if res.Status != model.StatusEmpty {
		t.Fatalf("expected empty status, got %s", res.Status)
	}
	if res.Dropped != 1 {
		t.Fatalf("expected 1 dropped row, got %d", res.Dropped)
	}
}

func TestReadStripsBOMAndKeepsOrder(t *testing.T) {
	input := "\ufeffimage_file,main_category,sub_category\nz.jpg,sign,bent\na.jpg,sign,faded\nz.jpg,sign,bent\n"
	spec := model.SourceSpec{Path: "damagedsigns_labeled_data.csv", MainField: "main_category", SubField: "sub_category"}
	records, err := Read(strings.NewReader(input), spec)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	order := []string{"z.jpg", "a.jpg", "z.jpg"}
	for i, want := range order {
		if records[i].ImageFile != want {
			t.Fatalf("record %d: expected %q, got %q", i, want, records[i].ImageFile)
		}
		if records[i].Dataset != "damagedsigns_labeled_data" {
			t.Fatalf("record %d: unexpected dataset %q", i, records[i].Dataset)
		}
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "trash_labels.csv", "image_file\n")
	if err := os.Mkdir(filepath.Join(dir, "potholes_labels.csv"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cases := map[string]bool{
		"trash_labels.csv":     true,
		"potholes_labels.csv":  false,
		"graffitti_labels.csv": false,
	}
	for path, want := range cases {
		if got := Exists(model.SourceSpec{Path: path}, dir); got != want {
			t.Fatalf("Exists(%s) = %v, want %v", path, got, want)
		}
	}
}
