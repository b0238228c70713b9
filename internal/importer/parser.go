package importer

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/openhours/workcheck/internal/domain/entity"
)

// Fixed spreadsheet columns. Any other header is treated as a work-hour
// category column.
const (
	colSerialNo  = "Serial No"
	colUserName  = "User Name"
	colDeptName  = "Department"
	colProject   = "Project"
	colStartTime = "Start Time"
	colEndTime   = "End Time"
)

// Accepted cell layouts for start/end time values. The m/d/yy variants cover
// native datetime cells, which render through their number format rather than
// as the typed-in text.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"01-02-06 15:04",
	"1/2/06 15:04:05",
	"1/2/06 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
}

// breakdownTolerance is the allowed drift between a supplied category
// breakdown and the wall-clock duration under strict validation.
var breakdownTolerance = decimal.NewFromFloat(0.01)

// sheetRow is one data row with fixed fields and category cells separated.
type sheetRow struct {
	// DataRow is the 1-based position among data rows (header excluded);
	// row errors and source row indexes use this numbering.
	DataRow    int
	Fields     map[string]string
	Categories map[string]string
}

// parseWorkbook extracts the first sheet into data rows keyed by header.
func parseWorkbook(data []byte) ([]sheetRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("sheet %q has no data rows", sheets[0])
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	fixed := map[string]bool{
		colSerialNo: true, colUserName: true, colDeptName: true,
		colProject: true, colStartTime: true, colEndTime: true,
	}

	var out []sheetRow
	for i, cells := range rows[1:] {
		row := sheetRow{
			DataRow:    i + 1,
			Fields:     make(map[string]string),
			Categories: make(map[string]string),
		}
		empty := true
		for j, header := range headers {
			if header == "" {
				continue
			}
			var value string
			if j < len(cells) {
				value = strings.TrimSpace(cells[j])
			}
			if value != "" {
				empty = false
			}
			if fixed[header] {
				row.Fields[header] = value
			} else {
				row.Categories[header] = value
			}
		}
		if empty {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

// convertRow validates a data row and normalizes it into a record. A
// failing row yields a ValidationError naming the offending field; the
// record is nil in that case.
func convertRow(row sheetRow, strict bool) (*entity.TimeReportRecord, *entity.ValidationError) {
	fail := func(field, message string) (*entity.TimeReportRecord, *entity.ValidationError) {
		return nil, &entity.ValidationError{Row: row.DataRow, Field: field, Message: message}
	}

	for _, field := range []string{colSerialNo, colUserName, colDeptName, colStartTime, colEndTime} {
		if row.Fields[field] == "" {
			return fail(fieldName(field), "required field is empty")
		}
	}

	start, err := parseCellTime(row.Fields[colStartTime])
	if err != nil {
		return fail("startTime", fmt.Sprintf("unparseable time %q", row.Fields[colStartTime]))
	}
	end, err := parseCellTime(row.Fields[colEndTime])
	if err != nil {
		return fail("endTime", fmt.Sprintf("unparseable time %q", row.Fields[colEndTime]))
	}
	if !end.After(start) {
		return fail("endTime", "end time must be after start time")
	}

	hours := make(map[string]float64)
	sum := decimal.Zero
	for category, value := range row.Categories {
		if value == "" {
			continue
		}
		h, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fail(category, fmt.Sprintf("hours value %q is not numeric", value))
		}
		if h < 0 {
			return fail(category, "hours cannot be negative")
		}
		hours[category] = h
		sum = sum.Add(decimal.NewFromFloat(h))
	}

	if strict && len(hours) > 0 {
		duration := decimal.NewFromFloat(end.Sub(start).Hours())
		if sum.Sub(duration).Abs().GreaterThan(breakdownTolerance) {
			return fail("hoursByCategory",
				fmt.Sprintf("category hours sum %s does not match duration %s", sum, duration))
		}
	}

	return &entity.TimeReportRecord{
		SerialNo:        row.Fields[colSerialNo],
		UserName:        row.Fields[colUserName],
		DeptName:        row.Fields[colDeptName],
		ProjectName:     row.Fields[colProject],
		StartTime:       start,
		EndTime:         end,
		WorkDate:        time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC),
		HoursByCategory: hours,
		SourceRowIndex:  row.DataRow,
	}, nil
}

func parseCellTime(value string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("no matching time layout for %q", value)
}

// fieldName maps a spreadsheet header to the field identifier used in row
// errors and the import-result display.
func fieldName(header string) string {
	switch header {
	case colSerialNo:
		return "serialNo"
	case colUserName:
		return "userName"
	case colDeptName:
		return "deptName"
	case colProject:
		return "projectName"
	case colStartTime:
		return "startTime"
	case colEndTime:
		return "endTime"
	default:
		return header
	}
}
