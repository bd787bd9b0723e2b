package rate

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/epimap/epimap-api/schema"
)

// ParseTable reads a CSV surveillance extract. The header row is resolved
// through the synonym table; an unresolved required column rejects the
// whole table. Parsing checks the context between rows so a large table
// stops promptly when the session terminates.
func ParseTable(ctx context.Context, r io.Reader, table SynonymTable) ([]schema.SurveillanceRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns, err := table.Resolve(header)
	if err != nil {
		return nil, err
	}

	var records []schema.SurveillanceRecord
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++

		record, err := parseRow(row, columns)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func parseRow(row []string, columns ColumnMap) (schema.SurveillanceRecord, error) {
	record := schema.SurveillanceRecord{
		UnitID: strings.TrimSpace(cell(row, columns.Unit)),
	}
	if record.UnitID == "" {
		return record, fmt.Errorf("empty unit name")
	}

	var err error
	if record.Tested, err = parseCount(cell(row, columns.Tested), "tested"); err != nil {
		return record, err
	}
	if record.Positive, err = parseCount(cell(row, columns.Positive), "positive"); err != nil {
		return record, err
	}
	if columns.Attendance >= 0 {
		if record.Attendance, err = parseCount(cell(row, columns.Attendance), "attendance"); err != nil {
			return record, err
		}
	}
	if columns.Period >= 0 {
		record.Period = strings.TrimSpace(cell(row, columns.Period))
	}
	if columns.AgeGroup >= 0 {
		record.Stratum.AgeGroup = strings.TrimSpace(cell(row, columns.AgeGroup))
	}
	if columns.Method >= 0 {
		record.Stratum.Method = strings.TrimSpace(cell(row, columns.Method))
	}
	return record, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func parseCount(raw, field string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q", field, raw)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative %s value %q", field, raw)
	}
	return v, nil
}
