// Package ingest loads deployment metric records from spreadsheet exports.
package ingest

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/riskgate/riskgate/internal/model"
)

// buildNumberColumn is the reserved header name carrying the CI build number.
const buildNumberColumn = "build_number"

// Row is one spreadsheet row resolved into a metric record.
type Row struct {
	BuildNumber int
	Metrics     model.MetricRecord
}

// XLSXOptions configures the spreadsheet reader.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// ReadMetricsXLSX reads an XLSX export where the first row names the
// metric columns and each following row holds one deployment. Empty
// cells are omitted from the record rather than recorded as zero.
func ReadMetricsXLSX(path string, opts XLSXOptions) ([]Row, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open xlsx")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, eris.New("ingest: sheet is empty")
	}

	header := rowToStrings(sheet.Rows[0])
	if len(header) == 0 {
		return nil, eris.New("ingest: header row is empty")
	}

	var out []Row
	for i, raw := range sheet.Rows[1:] {
		cells := rowToStrings(raw)
		row, err := parseRow(header, cells)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: row %d", i+2)
		}
		if len(row.Metrics) == 0 {
			continue
		}
		out = append(out, row)
	}

	return out, nil
}

func parseRow(header, cells []string) (Row, error) {
	row := Row{Metrics: model.MetricRecord{}}
	for j, name := range header {
		name = strings.TrimSpace(strings.ToLower(name))
		if name == "" || j >= len(cells) {
			continue
		}
		value := strings.TrimSpace(cells[j])
		if value == "" {
			continue
		}

		if name == buildNumberColumn {
			n, err := strconv.Atoi(value)
			if err != nil {
				return Row{}, eris.Wrapf(err, "column %q", name)
			}
			row.BuildNumber = n
			continue
		}

		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return Row{}, eris.Wrapf(err, "column %q", name)
		}
		row.Metrics[name] = v
	}
	return row, nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("ingest: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("ingest: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
