package entity

import "time"

// TimeReportRecord is one normalized row from an imported time-report
// spreadsheet. Records are owned by the batch that imported them and are
// immutable after creation, except for the soft delete applied when a batch
// is rolled back.
type TimeReportRecord struct {
	ID              int64              `json:"id"`
	SerialNo        string             `json:"serialNo"`
	UserName        string             `json:"userName"`
	DeptName        string             `json:"deptName"`
	ProjectName     string             `json:"projectName,omitempty"`
	StartTime       time.Time          `json:"startTime"`
	EndTime         time.Time          `json:"endTime"`
	WorkDate        time.Time          `json:"workDate"`
	HoursByCategory map[string]float64 `json:"hoursByCategory"`
	ImportBatchNo   string             `json:"importBatchNo"`
	SourceRowIndex  int                `json:"sourceRowIndex"`
	DeletedAt       *time.Time         `json:"-"`
	CreatedAt       time.Time          `json:"createdAt"`
}

// HasBreakdown reports whether an explicit category breakdown was supplied.
func (r *TimeReportRecord) HasBreakdown() bool {
	return len(r.HoursByCategory) > 0
}

// WallClockHours is the duration between start and end in hours.
func (r *TimeReportRecord) WallClockHours() float64 {
	return r.EndTime.Sub(r.StartTime).Hours()
}
