// Package model defines shared data structures.
package model

import (
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Canonical column names of the combined label table.
const (
	FieldImageFile    = "image_file"
	FieldMainCategory = "main_category"
	FieldSubCategory  = "sub_category"
	FieldDataset      = "dataset"
)

// CanonicalHeader is the column order of the combined output.
var CanonicalHeader = []string{FieldImageFile, FieldMainCategory, FieldSubCategory, FieldDataset}

// SourceSpec maps one dataset file onto the canonical schema.
type SourceSpec struct {
	Path      string
	MainField string
	SubField  string
}

// Dataset returns the provenance tag for the source: its path without extension.
func (s SourceSpec) Dataset() string {
	return DatasetName(s.Path)
}

// DatasetName strips the final extension from path. Leading dots of the base
// name do not start an extension, so ".csv" stays ".csv".
func DatasetName(path string) string {
	base := strings.TrimLeft(filepath.Base(path), ".")
	return strings.TrimSuffix(path, filepath.Ext(base))
}

// LabelRecord is one normalized label row.
type LabelRecord struct {
	ImageFile    string
	MainCategory string
	SubCategory  string
	Dataset      string
}

// Row returns the record in canonical column order.
func (r LabelRecord) Row() []string {
	return []string{r.ImageFile, r.MainCategory, r.SubCategory, r.Dataset}
}

// FrequencyTable counts records grouped by a single field value.
type FrequencyTable map[string]int

// Add increments the count for key.
func (t FrequencyTable) Add(key string) {
	t[key]++
}

// Keys returns the table keys in ascending lexicographic order.
func (t FrequencyTable) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Total sums all counts.
func (t FrequencyTable) Total() int {
	total := 0
	for _, n := range t {
		total += n
	}
	return total
}

// SourceStatus describes how loading a source ended.
type SourceStatus string

const (
	StatusLoaded  SourceStatus = "loaded"
	StatusEmpty   SourceStatus = "empty"
	StatusMissing SourceStatus = "missing"
	StatusFailed  SourceStatus = "failed"
)

// SourceResult is the outcome of loading one source.
type SourceResult struct {
	Spec    SourceSpec
	Dataset string
	Status  SourceStatus
	Records []LabelRecord
	// Rows counts data rows read, Dropped the rows missing a required field.
	Rows    int
	Dropped int
	Err     error
}

// Frequency table kinds, as stored in run history.
const (
	CountDataset = "dataset"
	CountMain    = "main_category"
	CountSub     = "sub_category"
)

// RunSource summarizes one source of a recorded run.
type RunSource struct {
	Path     string
	Dataset  string
	Status   SourceStatus
	Accepted int
	Message  string
}

// RunRecord is a completed pipeline run as kept in history.
type RunRecord struct {
	ID         string
	StartedAt  time.Time
	EndedAt    time.Time
	OutputPath string
	Total      int
	Sources    []RunSource
	Counts     map[string]FrequencyTable
}

// RunCount is one stored frequency table entry.
type RunCount struct {
	RunID string
	Kind  string
	Key   string
	Count int
}
