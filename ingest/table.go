package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"response_analytics/formatting"
)

// Table is a header row plus data rows read from one input file.
type Table struct {
	Path   string
	Sheet  string
	Header []string
	Rows   [][]string
}

// ReadTable loads path as a table. Spreadsheets are read from sheet, or the
// first sheet when sheet is empty. Fully blank rows are skipped.
func ReadTable(path, sheet string) (*Table, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		records, sheet, err = readWorkbook(path, sheet)
	case ".csv":
		records, err = readDelimited(path, ',')
	case ".tsv":
		records, err = readDelimited(path, '\t')
	default:
		return nil, fmt.Errorf("read %s: %w", path, ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, err
	}

	t := &Table{Path: path, Sheet: sheet}
	for _, rec := range records {
		if blankRow(rec) {
			continue
		}
		if t.Header == nil {
			t.Header = rec
			continue
		}
		t.Rows = append(t.Rows, rec)
	}
	if t.Header == nil {
		return nil, fmt.Errorf("read %s: %w", path, ErrNoHeader)
	}
	return t, nil
}

// Column returns the index of the header matching name, ignoring case,
// spaces, underscores and dashes.
func (t *Table) Column(name string) (int, error) {
	want := formatting.HeaderKey(name)
	if want != "" {
		for i, h := range t.Header {
			if formatting.HeaderKey(h) == want {
				return i, nil
			}
		}
	}
	return -1, fmt.Errorf("%s: column %q: %w", filepath.Base(t.Path), name, ErrMissingColumn)
}

// Cell returns the normalized value at row/col, or "" past the end of a short row.
func (t *Table) Cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return formatting.NormalizeCell(row[col])
}

func readWorkbook(path, sheet string) ([][]string, string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, "", fmt.Errorf("read %s: %w", path, ErrNoHeader)
		}
		sheet = sheets[0]
	}
	// Raw values keep date cells as serial numbers instead of locale-formatted text.
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, "", fmt.Errorf("read sheet %s of %s: %w", sheet, path, err)
	}
	return rows, sheet, nil
}

func readDelimited(path string, comma rune) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	r := csv.NewReader(file)
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	var out [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		out = append(out, rec)
	}
	if len(out) > 0 && len(out[0]) > 0 {
		out[0][0] = strings.TrimPrefix(out[0][0], "\ufeff")
	}
	return out, nil
}

func blankRow(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
