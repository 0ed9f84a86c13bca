package engine

import (
	"encoding/csv"
	"os"
	"strconv"
	"strings"

	rerrors "github.com/sambeau/ripple/pkg/ripple/errors"
)

// LoadCSV reads an RFC-4180 style file into a table. When hasHeader is
// true the first record becomes the header rather than a row.
func LoadCSV(path string, hasHeader bool) (*Table, *rerrors.RippleError) {
	f, err := os.Open(path)
	if err != nil {
		return nil, rerrors.New("IO-0001", map[string]any{
			"Operation": "open", "Path": path, "GoError": err.Error(),
		})
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // ragged rows are the data's problem, not ours

	records, err := reader.ReadAll()
	if err != nil {
		return nil, rerrors.New("IO-0002", map[string]any{
			"Path": path, "GoError": err.Error(),
		})
	}

	table := &Table{}
	for i, record := range records {
		if i == 0 && hasHeader {
			table.Header = append([]string{}, record...)
			continue
		}
		row := make([]Object, 0, len(record))
		for _, cell := range record {
			row = append(row, coerceCell(cell))
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

// CSVHeader reads just the first record of the file.
func CSVHeader(path string) ([]string, *rerrors.RippleError) {
	f, err := os.Open(path)
	if err != nil {
		return nil, rerrors.New("IO-0001", map[string]any{
			"Operation": "open", "Path": path, "GoError": err.Error(),
		})
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	record, err := reader.Read()
	if err != nil {
		return nil, rerrors.New("IO-0002", map[string]any{
			"Path": path, "GoError": err.Error(),
		})
	}
	return record, nil
}

// coerceCell converts a CSV cell to the narrowest value that fits:
// int, then float, then bool (case-insensitive), empty cells become
// null, everything else stays a string.
func coerceCell(cell string) Object {
	if cell == "" {
		return NULL
	}
	if i, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return &Integer{Value: i}
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		return &Float{Value: f}
	}
	switch strings.ToLower(cell) {
	case "true":
		return TRUE
	case "false":
		return FALSE
	}
	return &String{Value: cell}
}
