package entity

import "time"

// CheckType distinguishes the two rule sets a check run can evaluate.
type CheckType string

const (
	CheckIntegrity  CheckType = "integrity"
	CheckCompliance CheckType = "compliance"
)

// TriggerType records what caused a check run.
type TriggerType string

const (
	TriggerManual    TriggerType = "manual"
	TriggerScheduled TriggerType = "scheduled"
	TriggerImport    TriggerType = "import"
)

// CheckFilters scopes a checker invocation. DeptName and UserName are
// substring matches; empty means no restriction.
type CheckFilters struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	DeptName  string    `json:"deptName,omitempty"`
	UserName  string    `json:"userName,omitempty"`
}

// IssueType classifies an integrity finding.
type IssueType string

const (
	IssueMissing   IssueType = "missing"
	IssueDuplicate IssueType = "duplicate"
)

// IntegrityIssue is one finding of the integrity checker. A missing issue
// spans a maximal run of consecutive missing workdays (non-workdays in
// between neither count nor break the run). A duplicate issue covers a
// single user-date and references the extra record's serial number.
type IntegrityIssue struct {
	DeptName         string    `json:"deptName"`
	UserName         string    `json:"userName"`
	IssueType        IssueType `json:"issueType"`
	GapStart         time.Time `json:"gapStart"`
	GapEnd           time.Time `json:"gapEnd"`
	AffectedWorkdays int       `json:"affectedWorkdays"`
	SerialNo         string    `json:"serialNo,omitempty"`
}

// IntegritySummary aggregates one integrity check run.
type IntegritySummary struct {
	TotalUsers             int     `json:"totalUsers"`
	MissingUsers           int     `json:"missingUsers"`
	DuplicateUsers         int     `json:"duplicateUsers"`
	TotalMissingWorkdays   int     `json:"totalMissingWorkdays"`
	TotalDuplicateWorkdays int     `json:"totalDuplicateWorkdays"`
	ExpectedWorkdaySlots   int     `json:"expectedWorkdaySlots"`
	IntegrityRate          float64 `json:"integrityRate"` // percent, one decimal
}

// ComplianceStatus classifies a record against the hour thresholds.
type ComplianceStatus string

const (
	StatusShort  ComplianceStatus = "short"
	StatusExcess ComplianceStatus = "excess"
	StatusNormal ComplianceStatus = "normal"
)

// ComplianceIssue is one record that fell outside the configured thresholds.
type ComplianceIssue struct {
	DeptName      string           `json:"deptName"`
	UserName      string           `json:"userName"`
	SerialNo      string           `json:"serialNo"`
	Date          time.Time        `json:"date"`
	TotalHours    float64          `json:"totalHours"`
	ExpectedHours float64          `json:"expectedHours"`
	LegalMin      float64          `json:"legalMin"`
	LegalMax      float64          `json:"legalMax"`
	Difference    float64          `json:"difference"`
	Status        ComplianceStatus `json:"status"`
}

// CategoryStats aggregates hours for one work-hour category.
type CategoryStats struct {
	Records      int     `json:"records"`
	TotalHours   float64 `json:"totalHours"`
	AverageHours float64 `json:"averageHours"`
}

// MonthlyOvertime reports a user-month whose accumulated overtime exceeded
// the monthly cap.
type MonthlyOvertime struct {
	UserName      string  `json:"userName"`
	Month         string  `json:"month"` // YYYY-MM
	OvertimeHours float64 `json:"overtimeHours"`
	Limit         float64 `json:"limit"`
}

// ComplianceSummary aggregates one compliance check run.
type ComplianceSummary struct {
	TotalRecords    int                      `json:"totalRecords"`
	NormalRecords   int                      `json:"normalRecords"`
	ShortRecords    int                      `json:"shortRecords"`
	ExcessRecords   int                      `json:"excessRecords"`
	ComplianceRate  float64                  `json:"complianceRate"` // percent, one decimal
	WorkTypeStats   map[string]CategoryStats `json:"workTypeStats"`
	MonthlyOvertime []MonthlyOvertime        `json:"monthlyOvertime,omitempty"`
}

// CheckResult is one persisted checker invocation. It is immutable once
// saved and retrievable by CheckNo indefinitely.
type CheckResult struct {
	ID                int64              `json:"id"`
	CheckNo           string             `json:"checkNo"`
	CheckType         CheckType          `json:"checkType"`
	Filters           CheckFilters       `json:"filters"`
	IntegritySummary  *IntegritySummary  `json:"integritySummary,omitempty"`
	ComplianceSummary *ComplianceSummary `json:"complianceSummary,omitempty"`
	IntegrityIssues   []IntegrityIssue   `json:"integrityIssues,omitempty"`
	ComplianceIssues  []ComplianceIssue  `json:"complianceIssues,omitempty"`
	TriggeredBy       TriggerType        `json:"triggeredBy"`
	CheckUser         string             `json:"checkUser"`
	CheckTime         time.Time          `json:"checkTime"`
}

// IssueCount returns the number of issue records regardless of check type.
func (r *CheckResult) IssueCount() int {
	if r.CheckType == CheckIntegrity {
		return len(r.IntegrityIssues)
	}
	return len(r.ComplianceIssues)
}
