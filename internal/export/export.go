// Package export serializes ranked records into downloadable tables.
// The CSV layout is a compatibility contract: header and row order must
// not change.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/FranksOps/quern/internal/topquery"
)

// Format selects the download encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// ParseFormat converts a wire name into a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatXLSX, FormatJSON:
		return Format(s), nil
	case "":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want csv, xlsx or json)", s)
	}
}

// Ext returns the file extension for the format.
func (f Format) Ext() string { return string(f) }

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatJSON:
		return "application/json"
	default:
		return "text/csv; charset=utf-8"
	}
}

// header is the exact output column order.
var header = []string{"top_query", "query", "clicks", "impressions", "ctr", "q_pages_top_query", "page"}

// Write serializes rows in the given format.
func Write(w io.Writer, format Format, rows []topquery.RankedRecord) error {
	switch format {
	case FormatXLSX:
		return WriteXLSX(w, rows)
	case FormatJSON:
		return WriteJSON(w, rows)
	default:
		return WriteCSV(w, rows)
	}
}

// WriteCSV writes the compatibility format: the fixed header, then one
// row per record in aggregation order. CTR uses the shortest float form
// that round-trips.
func WriteCSV(w io.Writer, rows []topquery.RankedRecord) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			r.TopQuery,
			r.Query,
			strconv.Itoa(r.Clicks),
			strconv.Itoa(r.Impressions),
			strconv.FormatFloat(r.CTR, 'g', -1, 64),
			strconv.Itoa(r.QueriesOnPage),
			r.Page,
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteJSON writes an array of objects keyed by the output column names.
func WriteJSON(w io.Writer, rows []topquery.RankedRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if rows == nil {
		rows = []topquery.RankedRecord{}
	}
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

// WriteXLSX writes a single-sheet workbook with the same columns as the
// CSV format.
func WriteXLSX(w io.Writer, rows []topquery.RankedRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"

	for i, h := range header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("xlsx header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("xlsx header cell: %w", err)
		}
	}

	for rowIdx, r := range rows {
		values := []any{r.TopQuery, r.Query, r.Clicks, r.Impressions, r.CTR, r.QueriesOnPage, r.Page}
		for colIdx, v := range values {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return fmt.Errorf("xlsx cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("xlsx cell: %w", err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
