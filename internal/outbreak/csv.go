package outbreak

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// RawRow is one source row keyed by header name.
// Line is the 1-based record number in the source, the header being record 1.
type RawRow struct {
	Line   int
	Fields map[string]string
}

// Get returns the trimmed value of a column, or "" when the column is absent.
func (r RawRow) Get(column string) string {
	return strings.TrimSpace(r.Fields[column])
}

// ReadCSV reads a header-first CSV table:
//
//   - The first row names the columns
//   - Every later row becomes a RawRow keyed by those names
//   - Blank lines are skipped
//
// Values are kept as strings; parsing happens in the Normalizer.
func ReadCSV(r io.Reader) ([]RawRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("empty input: no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var rows []RawRow
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		if len(record) > len(header) {
			return nil, fmt.Errorf("row %d: expected at most %d columns, got %d", line, len(header), len(record))
		}

		fields := make(map[string]string, len(header))
		for j, name := range header {
			if j < len(record) {
				fields[name] = record[j]
			}
		}
		rows = append(rows, RawRow{Line: line, Fields: fields})
	}

	return rows, nil
}

// ReadCSVFile opens path and reads it with ReadCSV.
func ReadCSVFile(path string) ([]RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}
