package entity

import "time"

// DuplicateStrategy controls what happens when an imported row matches an
// already-persisted record on (userName, startTime, endTime).
type DuplicateStrategy string

const (
	DuplicateSkip  DuplicateStrategy = "skip"  // drop the new row
	DuplicateCover DuplicateStrategy = "cover" // replace the prior record
)

// Valid reports whether the strategy is one of the supported values.
func (s DuplicateStrategy) Valid() bool {
	return s == DuplicateSkip || s == DuplicateCover
}

// RowError describes a single row that failed import validation.
type RowError struct {
	Row   int    `json:"row"` // 1-based data row number, header excluded
	Field string `json:"field"`
	Error string `json:"error"`
}

// ImportBatch summarizes one completed import operation. It is created once
// per upload and never mutated after finalization.
//
// Invariant: TotalRows == SuccessRows + RepeatRows + InvalidRows.
type ImportBatch struct {
	ID                int64             `json:"id"`
	BatchNo           string            `json:"batchNo"`
	FileName          string            `json:"fileName"`
	FileSize          int64             `json:"fileSize"`
	TotalRows         int               `json:"totalRows"`
	SuccessRows       int               `json:"successRows"`
	RepeatRows        int               `json:"repeatRows"`
	InvalidRows       int               `json:"invalidRows"`
	RowErrors         []RowError        `json:"rowErrors,omitempty"`
	DuplicateStrategy DuplicateStrategy `json:"duplicateStrategy"`
	ImportedBy        string            `json:"importedBy"`
	ImportedAt        time.Time         `json:"importedAt"`
}
