// Package labels loads per-dataset label files into canonical records.
package labels

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/verte-zerg/labelmerge/internal/model"
)

const utf8BOM = "\ufeff"

// ErrSourceUnavailable reports a configured source file that does not exist.
var ErrSourceUnavailable = errors.New("source file not found")

// SourceReadError reports a source that exists but could not be opened or parsed.
type SourceReadError struct {
	Path string
	Err  error
}

func (e *SourceReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *SourceReadError) Unwrap() error {
	return e.Err
}

// Accept reports whether a row carries all three required label fields.
// Values are expected to be trimmed already.
func Accept(imageFile, mainCategory, subCategory string) bool {
	return imageFile != "" && mainCategory != "" && subCategory != ""
}

// Load reads the source at spec.Path, resolved against baseDir.
// It never returns an error: failures are reported on the result.
func Load(spec model.SourceSpec, baseDir string) model.SourceResult {
	result := model.SourceResult{
		Spec:    spec,
		Dataset: spec.Dataset(),
	}
	path := resolvePath(baseDir, spec.Path)
	logger := slog.With("source", spec.Path)

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			result.Status = model.StatusMissing
			result.Err = fmt.Errorf("%s: %w", spec.Path, ErrSourceUnavailable)
			logger.Debug("source missing", "path", path)
			return result
		}
		result.Status = model.StatusFailed
		result.Err = &SourceReadError{Path: spec.Path, Err: err}
		return result
	}

	file, err := os.Open(path)
	if err != nil {
		result.Status = model.StatusFailed
		result.Err = &SourceReadError{Path: spec.Path, Err: err}
		return result
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only source.
			_ = cerr
		}
	}()

	records, rows, err := readRecords(file, spec)
	if err != nil {
		result.Status = model.StatusFailed
		result.Err = &SourceReadError{Path: spec.Path, Err: err}
		logger.Debug("source read failed", "rows", rows, "error", err)
		return result
	}

	result.Records = records
	result.Rows = rows
	result.Dropped = rows - len(records)
	if len(records) == 0 {
		result.Status = model.StatusEmpty
	} else {
		result.Status = model.StatusLoaded
	}
	logger.Debug("source loaded", "rows", rows, "accepted", len(records), "dropped", result.Dropped)
	return result
}

// Read parses label rows from r using the column mapping in spec.
func Read(r io.Reader, spec model.SourceSpec) ([]model.LabelRecord, error) {
	records, _, err := readRecords(r, spec)
	return records, err
}

func readRecords(r io.Reader, spec model.SourceSpec) ([]model.LabelRecord, int, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	if err := checkUTF8(header); err != nil {
		return nil, 0, fmt.Errorf("header: %w", err)
	}
	idx := headerIndex(header)
	imageIdx := column(idx, model.FieldImageFile)
	mainIdx := column(idx, spec.MainField)
	subIdx := column(idx, spec.SubField)
	dataset := spec.Dataset()

	var records []model.LabelRecord
	rows := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, rows, fmt.Errorf("read row %d: %w", rows+1, err)
		}
		rows++
		if err := checkUTF8(row); err != nil {
			return nil, rows, fmt.Errorf("row %d: %w", rows, err)
		}

		imageFile := cell(row, imageIdx)
		mainCategory := cell(row, mainIdx)
		subCategory := cell(row, subIdx)
		if !Accept(imageFile, mainCategory, subCategory) {
			continue
		}
		records = append(records, model.LabelRecord{
			ImageFile:    imageFile,
			MainCategory: mainCategory,
			SubCategory:  subCategory,
			Dataset:      dataset,
		})
	}
	return records, rows, nil
}

// headerIndex maps column names to positions. The last occurrence of a
// duplicated name wins.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		idx[name] = i
	}
	return idx
}

func column(idx map[string]int, name string) int {
	if pos, ok := idx[name]; ok {
		return pos
	}
	return -1
}

func cell(row []string, pos int) string {
	if pos < 0 || pos >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[pos])
}

func checkUTF8(fields []string) error {
	for _, f := range fields {
		if !utf8.ValidString(f) {
			return fmt.Errorf("invalid UTF-8 in %q", f)
		}
	}
	return nil
}

// Exists reports whether the source file is present under baseDir.
func Exists(spec model.SourceSpec, baseDir string) bool {
	info, err := os.Stat(resolvePath(baseDir, spec.Path))
	return err == nil && !info.IsDir()
}

func resolvePath(baseDir, path string) string {
	if baseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
