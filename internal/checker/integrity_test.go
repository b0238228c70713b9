package checker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openhours/workcheck/internal/config"
	"github.com/openhours/workcheck/internal/domain/entity"
)

type fakeRecords struct {
	records []*entity.TimeReportRecord
	err     error
}

func (f *fakeRecords) ListInRange(ctx context.Context, _ entity.CheckFilters) ([]*entity.TimeReportRecord, error) {
	return f.records, f.err
}

type fakeCalendar struct {
	stats *entity.WorkdayStats
}

func (f *fakeCalendar) CalculateWorkdays(ctx context.Context, start, end time.Time) (*entity.WorkdayStats, error) {
	return f.stats, nil
}

type fakeStore struct {
	saved *entity.CheckResult
}

func (f *fakeStore) Save(ctx context.Context, result *entity.CheckResult) error {
	result.CheckNo = "CHK20260830120000_0001"
	f.saved = result
	return nil
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func report(user, dept, serial, workDate string) *entity.TimeReportRecord {
	return &entity.TimeReportRecord{
		SerialNo: serial,
		UserName: user,
		DeptName: dept,
		WorkDate: day(workDate),
	}
}

func testCheckConfig() config.CheckConfig {
	return config.CheckConfig{
		StandardHours:      8,
		MinHours:           4,
		MaxOvertime:        4,
		MaxMonthlyOvertime: 80,
		OvertimeCategory:   "Overtime Hours",
		MaxRangeDays:       90,
	}
}

func rangeFilters(start, end string) entity.CheckFilters {
	return entity.CheckFilters{StartDate: day(start), EndDate: day(end)}
}

func TestIntegrityChecker_CoalescesMissingWorkdays(t *testing.T) {
	// Workdays Mon, Tue, Thu; Wednesday is a holiday. Alice reported Monday
	// only, so Tue and Thu form one gap spanning the holiday.
	calendar := &fakeCalendar{stats: &entity.WorkdayStats{
		TotalDays: 4,
		Workdays:  3,
		WorkdayDates: []time.Time{
			day("2026-03-02"), day("2026-03-03"), day("2026-03-05"),
		},
	}}
	records := &fakeRecords{records: []*entity.TimeReportRecord{
		report("alice", "Engineering", "A001", "2026-03-02"),
	}}
	store := &fakeStore{}

	c := NewIntegrityChecker(records, calendar, store, testCheckConfig(), zap.NewNop())
	result, err := c.Run(context.Background(), rangeFilters("2026-03-02", "2026-03-05"), entity.TriggerManual, "tester")
	require.NoError(t, err)

	require.Len(t, result.IntegrityIssues, 1)
	issue := result.IntegrityIssues[0]
	assert.Equal(t, entity.IssueMissing, issue.IssueType)
	assert.Equal(t, "alice", issue.UserName)
	assert.Equal(t, "Engineering", issue.DeptName)
	assert.Equal(t, day("2026-03-03"), issue.GapStart)
	assert.Equal(t, day("2026-03-05"), issue.GapEnd)
	assert.Equal(t, 2, issue.AffectedWorkdays)

	summary := result.IntegritySummary
	assert.Equal(t, 1, summary.TotalUsers)
	assert.Equal(t, 1, summary.MissingUsers)
	assert.Equal(t, 2, summary.TotalMissingWorkdays)
	assert.Equal(t, 3, summary.ExpectedWorkdaySlots)
	assert.InDelta(t, 33.3, summary.IntegrityRate, 0.001)
}

func TestIntegrityChecker_PresentWorkdayBreaksGap(t *testing.T) {
	calendar := &fakeCalendar{stats: &entity.WorkdayStats{
		Workdays: 5,
		WorkdayDates: []time.Time{
			day("2026-03-02"), day("2026-03-03"), day("2026-03-04"),
			day("2026-03-05"), day("2026-03-06"),
		},
	}}
	// Missing Mon-Tue, present Wed, missing Thu-Fri: two separate gaps.
	records := &fakeRecords{records: []*entity.TimeReportRecord{
		report("alice", "Engineering", "A001", "2026-03-04"),
	}}
	store := &fakeStore{}

	c := NewIntegrityChecker(records, calendar, store, testCheckConfig(), zap.NewNop())
	result, err := c.Run(context.Background(), rangeFilters("2026-03-02", "2026-03-06"), entity.TriggerManual, "tester")
	require.NoError(t, err)

	require.Len(t, result.IntegrityIssues, 2)
	assert.Equal(t, day("2026-03-02"), result.IntegrityIssues[0].GapStart)
	assert.Equal(t, day("2026-03-03"), result.IntegrityIssues[0].GapEnd)
	assert.Equal(t, day("2026-03-05"), result.IntegrityIssues[1].GapStart)
	assert.Equal(t, day("2026-03-06"), result.IntegrityIssues[1].GapEnd)
	assert.Equal(t, 4, result.IntegritySummary.TotalMissingWorkdays)
}

func TestIntegrityChecker_DuplicateIssuePerExtraRecord(t *testing.T) {
	calendar := &fakeCalendar{stats: &entity.WorkdayStats{
		Workdays:     1,
		WorkdayDates: []time.Time{day("2026-03-02")},
	}}
	// Three records on one date: one issue per extra record beyond the
	// first, each carrying that record's serial.
	records := &fakeRecords{records: []*entity.TimeReportRecord{
		report("bob", "Sales", "B001", "2026-03-02"),
		report("bob", "Sales", "B002", "2026-03-02"),
		report("bob", "Sales", "B003", "2026-03-02"),
	}}
	store := &fakeStore{}

	c := NewIntegrityChecker(records, calendar, store, testCheckConfig(), zap.NewNop())
	result, err := c.Run(context.Background(), rangeFilters("2026-03-02", "2026-03-02"), entity.TriggerManual, "tester")
	require.NoError(t, err)

	require.Len(t, result.IntegrityIssues, 2)
	assert.Equal(t, entity.IssueDuplicate, result.IntegrityIssues[0].IssueType)
	assert.Equal(t, "B002", result.IntegrityIssues[0].SerialNo)
	assert.Equal(t, "B003", result.IntegrityIssues[1].SerialNo)
	assert.Equal(t, 1, result.IntegrityIssues[0].AffectedWorkdays)

	summary := result.IntegritySummary
	assert.Equal(t, 1, summary.DuplicateUsers)
	assert.Equal(t, 1, summary.TotalDuplicateWorkdays)
	assert.Equal(t, 0, summary.TotalMissingWorkdays)
	assert.InDelta(t, 100.0, summary.IntegrityRate, 0.001)
}

func TestIntegrityChecker_SingleMissingDayInWeek(t *testing.T) {
	calendar := &fakeCalendar{stats: &entity.WorkdayStats{
		Workdays: 5,
		WorkdayDates: []time.Time{
			day("2026-03-02"), day("2026-03-03"), day("2026-03-04"),
			day("2026-03-05"), day("2026-03-06"),
		},
	}}
	records := &fakeRecords{records: []*entity.TimeReportRecord{
		report("alice", "Engineering", "A001", "2026-03-02"),
		report("alice", "Engineering", "A002", "2026-03-03"),
		report("alice", "Engineering", "A004", "2026-03-05"),
		report("alice", "Engineering", "A005", "2026-03-06"),
	}}
	store := &fakeStore{}

	c := NewIntegrityChecker(records, calendar, store, testCheckConfig(), zap.NewNop())
	result, err := c.Run(context.Background(), rangeFilters("2026-03-02", "2026-03-06"), entity.TriggerManual, "tester")
	require.NoError(t, err)

	require.Len(t, result.IntegrityIssues, 1)
	assert.Equal(t, 1, result.IntegrityIssues[0].AffectedWorkdays)
	assert.Equal(t, day("2026-03-04"), result.IntegrityIssues[0].GapStart)

	summary := result.IntegritySummary
	assert.Equal(t, 5, summary.ExpectedWorkdaySlots)
	assert.InDelta(t, 80.0, summary.IntegrityRate, 0.001)
}

func TestIntegrityChecker_NoRecordsYieldsFullRate(t *testing.T) {
	calendar := &fakeCalendar{stats: &entity.WorkdayStats{
		Workdays:     5,
		WorkdayDates: []time.Time{day("2026-03-02"), day("2026-03-03"), day("2026-03-04"), day("2026-03-05"), day("2026-03-06")},
	}}
	records := &fakeRecords{}
	store := &fakeStore{}

	c := NewIntegrityChecker(records, calendar, store, testCheckConfig(), zap.NewNop())
	result, err := c.Run(context.Background(), rangeFilters("2026-03-02", "2026-03-06"), entity.TriggerManual, "tester")
	require.NoError(t, err)

	// No users means no expected slots; the rate defaults to full.
	assert.Equal(t, 0, result.IntegritySummary.TotalUsers)
	assert.Equal(t, 0, result.IntegritySummary.ExpectedWorkdaySlots)
	assert.InDelta(t, 100.0, result.IntegritySummary.IntegrityRate, 0.001)
	assert.Empty(t, result.IntegrityIssues)
}

func TestIntegrityChecker_SavesResult(t *testing.T) {
	calendar := &fakeCalendar{stats: &entity.WorkdayStats{
		Workdays:     1,
		WorkdayDates: []time.Time{day("2026-03-02")},
	}}
	records := &fakeRecords{}
	store := &fakeStore{}

	c := NewIntegrityChecker(records, calendar, store, testCheckConfig(), zap.NewNop())
	result, err := c.Run(context.Background(), rangeFilters("2026-03-02", "2026-03-02"), entity.TriggerScheduled, "scheduler")
	require.NoError(t, err)

	require.NotNil(t, store.saved)
	assert.Equal(t, result, store.saved)
	assert.Equal(t, entity.CheckIntegrity, result.CheckType)
	assert.Equal(t, entity.TriggerScheduled, result.TriggeredBy)
	assert.Equal(t, "scheduler", result.CheckUser)
	assert.NotEmpty(t, result.CheckNo)
}

func TestIntegrityChecker_RejectsBadRanges(t *testing.T) {
	c := NewIntegrityChecker(&fakeRecords{}, &fakeCalendar{}, &fakeStore{}, testCheckConfig(), zap.NewNop())

	tests := []struct {
		name    string
		filters entity.CheckFilters
	}{
		{
			name:    "inverted range",
			filters: rangeFilters("2026-03-10", "2026-03-02"),
		},
		{
			name:    "range wider than limit",
			filters: rangeFilters("2026-01-01", "2026-12-31"),
		},
		{
			name:    "missing dates",
			filters: entity.CheckFilters{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Run(context.Background(), tt.filters, entity.TriggerManual, "tester")
			assert.ErrorIs(t, err, entity.ErrInvalidRange)
		})
	}
}
