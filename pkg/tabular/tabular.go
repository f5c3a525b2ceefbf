// Package tabular loads spreadsheet source documents and renders them for
// prompt construction.
//
// Source files follow the release corpus naming convention: a release label
// followed by the document kind, e.g. "R24.1_Defects.xlsx",
// "R24.1_TestExecution.xlsx", "R24.1_Meta.csv". The first row of each file
// is the header; every remaining row is data.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrLoad indicates a source file could not be read or parsed.
var ErrLoad = errors.New("tabular load error")

// Document kinds recognized by the loader. Comparison is synthetic: it is
// produced by cross-release generation, never loaded from a file.
const (
	DocTypeDefect        = "defect"
	DocTypeTestExecution = "test_execution"
	DocTypeMetadata      = "metadata"
	DocTypeComparison    = "comparison"
)

// Table is one loaded source document.
type Table struct {
	// Source is the file name the table was loaded from (base name, no dir).
	Source string

	// Release is the release label derived from the file name.
	Release string

	// DocType is one of the DocType constants.
	DocType string

	Columns []string
	Rows    [][]string
}

// Load reads a .xlsx or .csv file into a Table. The first row is the header.
// For xlsx files only the first sheet is read.
func Load(path, release, docType string) (*Table, error) {
	var records [][]string
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		records, err = loadXLSX(path)
	case ".csv":
		records, err = loadCSV(path)
	default:
		return nil, fmt.Errorf("%w: unsupported file type: %s", ErrLoad, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLoad, path, err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s: file has no header row", ErrLoad, path)
	}

	t := &Table{
		Source:  filepath.Base(path),
		Release: release,
		DocType: docType,
		Columns: records[0],
		Rows:    records[1:],
	}

	// Ragged rows happen in hand-edited sheets; pad to the header width so
	// downstream rendering can index columns safely.
	for i, row := range t.Rows {
		for len(row) < len(t.Columns) {
			row = append(row, "")
		}
		t.Rows[i] = row[:len(t.Columns)]
	}

	return t, nil
}

func loadXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}

	return f.GetRows(sheets[0])
}

func loadCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

// Classify derives (release, docType) from a source file name. The second
// return value is false for names that don't match the corpus convention.
func Classify(filename string) (release, docType string, ok bool) {
	base := filepath.Base(filename)
	ext := strings.ToLower(filepath.Ext(base))
	if ext != ".xlsx" && ext != ".csv" {
		return "", "", false
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	idx := strings.Index(stem, "_")
	if idx <= 0 {
		return "", "", false
	}
	release = stem[:idx]
	kind := stem[idx+1:]

	switch {
	case strings.HasPrefix(kind, "Defects"):
		return release, DocTypeDefect, true
	case strings.HasPrefix(kind, "TestExecution"):
		return release, DocTypeTestExecution, true
	case strings.HasPrefix(kind, "Meta"):
		return release, DocTypeMetadata, true
	default:
		return "", "", false
	}
}

// SourceFile is a loadable file found by ScanDir, with its derived labels.
type SourceFile struct {
	Path    string
	Release string
	DocType string
}

// ScanDir lists the loadable source files in dir, sorted by name.
// Unrecognized files are skipped silently.
func ScanDir(dir string) ([]SourceFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: scanning %s: %v", ErrLoad, dir, err)
	}

	var files []SourceFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		release, docType, ok := Classify(entry.Name())
		if !ok {
			continue
		}
		files = append(files, SourceFile{
			Path:    filepath.Join(dir, entry.Name()),
			Release: release,
			DocType: docType,
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	return files, nil
}

// Markdown renders the table as a markdown table for prompt construction,
// truncated at maxRows data rows. A truncation note is appended when rows
// are omitted.
func (t *Table) Markdown(maxRows int) string {
	var b strings.Builder

	b.WriteString("| " + strings.Join(t.Columns, " | ") + " |\n")

	sep := make([]string, len(t.Columns))
	for i := range sep {
		sep[i] = "---"
	}
	b.WriteString("| " + strings.Join(sep, " | ") + " |\n")

	rows := t.Rows
	truncated := 0
	if maxRows > 0 && len(rows) > maxRows {
		truncated = len(rows) - maxRows
		rows = rows[:maxRows]
	}

	for _, row := range rows {
		b.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}

	if truncated > 0 {
		fmt.Fprintf(&b, "\n(%d more rows omitted)\n", truncated)
	}

	return b.String()
}

// ColumnStats summarizes one column for prompt construction.
type ColumnStats struct {
	Name string

	// Distinct is the number of distinct non-empty values in the column.
	Distinct int

	// Distinct values with occurrence counts, most frequent first.
	// Capped at the top 10 values.
	TopValues []ValueCount

	// Numeric is true when every non-empty cell parses as a number; Min and
	// Max are then populated.
	Numeric bool
	Min     float64
	Max     float64
}

// ValueCount is one distinct cell value and how often it occurs.
type ValueCount struct {
	Value string
	Count int
}

// Stats computes summary statistics over the table: row count and per-column
// distinct values plus numeric ranges. The result feeds cross-release
// comparison prompts.
func (t *Table) Stats() TableStats {
	stats := TableStats{
		Source:   t.Source,
		Release:  t.Release,
		DocType:  t.DocType,
		RowCount: len(t.Rows),
	}

	for ci, name := range t.Columns {
		counts := make(map[string]int)
		numeric := true
		var minV, maxV float64
		seenNumeric := false

		for _, row := range t.Rows {
			v := strings.TrimSpace(row[ci])
			if v == "" {
				continue
			}
			counts[v]++

			if numeric {
				f, err := strconv.ParseFloat(v, 64)
				if err != nil {
					numeric = false
				} else {
					if !seenNumeric || f < minV {
						minV = f
					}
					if !seenNumeric || f > maxV {
						maxV = f
					}
					seenNumeric = true
				}
			}
		}

		cs := ColumnStats{Name: name, Distinct: len(counts)}
		if numeric && seenNumeric {
			cs.Numeric = true
			cs.Min = minV
			cs.Max = maxV
		}

		for v, c := range counts {
			cs.TopValues = append(cs.TopValues, ValueCount{Value: v, Count: c})
		}
		sort.Slice(cs.TopValues, func(i, j int) bool {
			if cs.TopValues[i].Count != cs.TopValues[j].Count {
				return cs.TopValues[i].Count > cs.TopValues[j].Count
			}
			return cs.TopValues[i].Value < cs.TopValues[j].Value
		})
		if len(cs.TopValues) > 10 {
			cs.TopValues = cs.TopValues[:10]
		}

		stats.Columns = append(stats.Columns, cs)
	}

	return stats
}

// TableStats is the summary view of one table.
type TableStats struct {
	Source   string
	Release  string
	DocType  string
	RowCount int
	Columns  []ColumnStats
}

// Render writes the statistics in a compact text form for prompts.
func (s TableStats) Render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Source: %s (release %s, type %s), %d rows\n", s.Source, s.Release, s.DocType, s.RowCount)
	for _, c := range s.Columns {
		fmt.Fprintf(&b, "- %s: %d distinct values", c.Name, c.Distinct)
		if c.Numeric {
			fmt.Fprintf(&b, ", range %g..%g", c.Min, c.Max)
		}
		if len(c.TopValues) > 0 {
			parts := make([]string, 0, len(c.TopValues))
			for _, vc := range c.TopValues {
				parts = append(parts, fmt.Sprintf("%s(%d)", vc.Value, vc.Count))
			}
			fmt.Fprintf(&b, "; top: %s", strings.Join(parts, ", "))
		}
		b.WriteString("\n")
	}

	return b.String()
}
