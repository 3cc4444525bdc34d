package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
)

// utf8BOM lets spreadsheet applications detect UTF-8 encoded CSV.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Dataset defines tabular export content. Rows are keyed by header; missing
// keys render as empty cells.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// CSVExporter renders Dataset records into CSV bytes.
type CSVExporter struct {
	bom            bool
	escapeFormulas bool
}

// NewCSVExporter builds a plain CSV exporter that writes cells untouched.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// NewSpreadsheetExporter builds the exporter used for downloads opened in Excel
// or Sheets. Output carries a UTF-8 byte order mark and text cells that would be
// evaluated as formulas are prefixed with a single quote.
func NewSpreadsheetExporter() *CSVExporter {
	return &CSVExporter{bom: true, escapeFormulas: true}
}

// Render produces CSV encoded bytes for the dataset.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	if dup := duplicateHeader(data.Headers); dup != "" {
		return nil, fmt.Errorf("csv header %q listed twice", dup)
	}

	buf := &bytes.Buffer{}
	if e.bom {
		buf.Write(utf8BOM)
	}
	writer := csv.NewWriter(buf)
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	record := make([]string, len(data.Headers))
	for n, row := range data.Rows {
		for i, header := range data.Headers {
			record[i] = e.cell(row[header])
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row %d: %w", n+1, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *CSVExporter) cell(value string) string {
	if !e.escapeFormulas || value == "" {
		return value
	}
	switch value[0] {
	case '=', '@', '\t', '\r':
		return "'" + value
	case '+', '-':
		// Signed numbers such as scores stay numeric.
		if _, err := strconv.ParseFloat(value, 64); err == nil {
			return value
		}
		return "'" + value
	}
	return value
}

func duplicateHeader(headers []string) string {
	seen := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		key := strings.TrimSpace(h)
		if _, ok := seen[key]; ok {
			return h
		}
		seen[key] = struct{}{}
	}
	return ""
}
