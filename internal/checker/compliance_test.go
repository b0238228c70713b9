package checker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openhours/workcheck/internal/domain/entity"
)

func hoursReport(user, serial, workDate string, hours map[string]float64) *entity.TimeReportRecord {
	rec := report(user, "Engineering", serial, workDate)
	rec.HoursByCategory = hours
	return rec
}

func TestComplianceChecker_Boundaries(t *testing.T) {
	// legalMin 4 inclusive; above the expected 8 standard hours is excess.
	tests := []struct {
		name   string
		hours  float64
		status entity.ComplianceStatus
	}{
		{name: "exactly at legal minimum", hours: 4, status: entity.StatusNormal},
		{name: "just below legal minimum", hours: 3.9, status: entity.StatusShort},
		{name: "exactly at expected hours", hours: 8, status: entity.StatusNormal},
		{name: "just above expected hours", hours: 8.1, status: entity.StatusExcess},
		{name: "beyond the legal cap", hours: 12.5, status: entity.StatusExcess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := &fakeRecords{records: []*entity.TimeReportRecord{
				hoursReport("alice", "A001", "2026-03-02", map[string]float64{"Regular Hours": tt.hours}),
			}}
			store := &fakeStore{}

			c := NewComplianceChecker(records, store, testCheckConfig(), zap.NewNop())
			result, err := c.Run(context.Background(), rangeFilters("2026-03-02", "2026-03-02"),
				Thresholds{}, entity.TriggerManual, "tester")
			require.NoError(t, err)

			if tt.status == entity.StatusNormal {
				assert.Empty(t, result.ComplianceIssues)
				assert.Equal(t, 1, result.ComplianceSummary.NormalRecords)
			} else {
				require.Len(t, result.ComplianceIssues, 1)
				assert.Equal(t, tt.status, result.ComplianceIssues[0].Status)
			}
		})
	}
}

func TestComplianceChecker_IssueFields(t *testing.T) {
	records := &fakeRecords{records: []*entity.TimeReportRecord{
		hoursReport("alice", "A001", "2026-03-02", map[string]float64{"Regular Hours": 3}),
	}}
	store := &fakeStore{}

	c := NewComplianceChecker(records, store, testCheckConfig(), zap.NewNop())
	result, err := c.Run(context.Background(), rangeFilters("2026-03-02", "2026-03-02"),
		Thresholds{}, entity.TriggerManual, "tester")
	require.NoError(t, err)

	require.Len(t, result.ComplianceIssues, 1)
	issue := result.ComplianceIssues[0]
	assert.Equal(t, "alice", issue.UserName)
	assert.Equal(t, "A001", issue.SerialNo)
	assert.Equal(t, entity.StatusShort, issue.Status)
	assert.InDelta(t, 3.0, issue.TotalHours, 0.001)
	assert.InDelta(t, 8.0, issue.ExpectedHours, 0.001)
	assert.InDelta(t, 4.0, issue.LegalMin, 0.001)
	assert.InDelta(t, 12.0, issue.LegalMax, 0.001)
	assert.InDelta(t, -5.0, issue.Difference, 0.001)
}

func TestComplianceChecker_WallClockFallback(t *testing.T) {
	// No category breakdown: the record is judged on its wall-clock span.
	rec := report("alice", "Engineering", "A001", "2026-03-02")
	rec.StartTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	rec.EndTime = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	records := &fakeRecords{records: []*entity.TimeReportRecord{rec}}
	store := &fakeStore{}

	c := NewComplianceChecker(records, store, testCheckConfig(), zap.NewNop())
	result, err := c.Run(context.Background(), rangeFilters("2026-03-02", "2026-03-02"),
		Thresholds{}, entity.TriggerManual, "tester")
	require.NoError(t, err)

	require.Len(t, result.ComplianceIssues, 1)
	assert.Equal(t, entity.StatusShort, result.ComplianceIssues[0].Status)
	assert.InDelta(t, 3.0, result.ComplianceIssues[0].TotalHours, 0.001)
}

func TestComplianceChecker_WorkTypeStats(t *testing.T) {
	records := &fakeRecords{records: []*entity.TimeReportRecord{
		hoursReport("alice", "A001", "2026-03-02", map[string]float64{"Regular Hours": 8}),
		hoursReport("alice", "A002", "2026-03-03", map[string]float64{"Regular Hours": 6, "Overtime Hours": 2}),
		hoursReport("bob", "B001", "2026-03-02", map[string]float64{"Regular Hours": 7}),
	}}
	store := &fakeStore{}

	c := NewComplianceChecker(records, store, testCheckConfig(), zap.NewNop())
	result, err := c.Run(context.Background(), rangeFilters("2026-03-02", "2026-03-03"),
		Thresholds{}, entity.TriggerManual, "tester")
	require.NoError(t, err)

	stats := result.ComplianceSummary.WorkTypeStats
	require.Contains(t, stats, "Regular Hours")
	require.Contains(t, stats, "Overtime Hours")

	regular := stats["Regular Hours"]
	assert.Equal(t, 3, regular.Records)
	assert.InDelta(t, 21.0, regular.TotalHours, 0.001)
	assert.InDelta(t, 7.0, regular.AverageHours, 0.001)

	overtime := stats["Overtime Hours"]
	assert.Equal(t, 1, overtime.Records)
	assert.InDelta(t, 2.0, overtime.TotalHours, 0.001)
	assert.InDelta(t, 2.0, overtime.AverageHours, 0.001)
}

func TestComplianceChecker_MonthlyOvertimeCap(t *testing.T) {
	records := &fakeRecords{records: []*entity.TimeReportRecord{
		hoursReport("alice", "A001", "2026-03-02", map[string]float64{"Regular Hours": 8, "Overtime Hours": 3}),
		hoursReport("bob", "B001", "2026-03-02", map[string]float64{"Regular Hours": 7, "Overtime Hours": 4.5}),
		hoursReport("bob", "B002", "2026-03-03", map[string]float64{"Regular Hours": 7, "Overtime Hours": 4.5}),
	}}
	store := &fakeStore{}

	cfg := testCheckConfig()
	c := NewComplianceChecker(records, store, cfg, zap.NewNop())

	// Override the monthly cap so bob's 9 accumulated hours exceed it.
	result, err := c.Run(context.Background(), rangeFilters("2026-03-02", "2026-03-03"),
		Thresholds{MaxMonthlyOvertime: 8}, entity.TriggerManual, "tester")
	require.NoError(t, err)

	require.Len(t, result.ComplianceSummary.MonthlyOvertime, 1)
	finding := result.ComplianceSummary.MonthlyOvertime[0]
	assert.Equal(t, "bob", finding.UserName)
	assert.Equal(t, "2026-03", finding.Month)
	assert.InDelta(t, 9.0, finding.OvertimeHours, 0.001)
	assert.InDelta(t, 8.0, finding.Limit, 0.001)
}

func TestComplianceChecker_RateOneDecimal(t *testing.T) {
	records := &fakeRecords{records: []*entity.TimeReportRecord{
		hoursReport("alice", "A001", "2026-03-02", map[string]float64{"Regular Hours": 8}),
		hoursReport("alice", "A002", "2026-03-03", map[string]float64{"Regular Hours": 8}),
		hoursReport("alice", "A003", "2026-03-04", map[string]float64{"Regular Hours": 2}),
	}}
	store := &fakeStore{}

	c := NewComplianceChecker(records, store, testCheckConfig(), zap.NewNop())
	result, err := c.Run(context.Background(), rangeFilters("2026-03-02", "2026-03-04"),
		Thresholds{}, entity.TriggerManual, "tester")
	require.NoError(t, err)

	summary := result.ComplianceSummary
	assert.Equal(t, 3, summary.TotalRecords)
	assert.Equal(t, 2, summary.NormalRecords)
	assert.Equal(t, 1, summary.ShortRecords)
	assert.InDelta(t, 66.7, summary.ComplianceRate, 0.001)
}

func TestComplianceChecker_EmptyRangeIsFullyCompliant(t *testing.T) {
	c := NewComplianceChecker(&fakeRecords{}, &fakeStore{}, testCheckConfig(), zap.NewNop())

	result, err := c.Run(context.Background(), rangeFilters("2026-03-02", "2026-03-04"),
		Thresholds{}, entity.TriggerManual, "tester")
	require.NoError(t, err)

	assert.Equal(t, 0, result.ComplianceSummary.TotalRecords)
	assert.InDelta(t, 100.0, result.ComplianceSummary.ComplianceRate, 0.001)
	assert.Empty(t, result.ComplianceIssues)
}

func TestComplianceChecker_ThresholdOverrides(t *testing.T) {
	records := &fakeRecords{records: []*entity.TimeReportRecord{
		hoursReport("alice", "A001", "2026-03-02", map[string]float64{"Regular Hours": 5}),
	}}
	store := &fakeStore{}

	c := NewComplianceChecker(records, store, testCheckConfig(), zap.NewNop())
	result, err := c.Run(context.Background(), rangeFilters("2026-03-02", "2026-03-02"),
		Thresholds{MinHours: 6}, entity.TriggerManual, "tester")
	require.NoError(t, err)

	require.Len(t, result.ComplianceIssues, 1)
	assert.Equal(t, entity.StatusShort, result.ComplianceIssues[0].Status)
	assert.InDelta(t, 6.0, result.ComplianceIssues[0].LegalMin, 0.001)
}
