package checker

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/openhours/workcheck/internal/config"
	"github.com/openhours/workcheck/internal/domain/entity"
)

// IntegrityChecker finds workdays without a time report and dates reported
// more than once inside a date range.
type IntegrityChecker struct {
	records  RecordSource
	calendar Calendar
	store    RunStore
	cfg      config.CheckConfig
	logger   *zap.Logger
}

// NewIntegrityChecker creates a new integrity checker.
func NewIntegrityChecker(records RecordSource, calendar Calendar, store RunStore, cfg config.CheckConfig, logger *zap.Logger) *IntegrityChecker {
	return &IntegrityChecker{
		records:  records,
		calendar: calendar,
		store:    store,
		cfg:      cfg,
		logger:   logger,
	}
}

// userDays is one user's records bucketed by work date, in insertion order.
type userDays struct {
	deptName string
	byDate   map[string][]*entity.TimeReportRecord
}

// Run evaluates the range and persists the result. Missing findings span
// maximal runs of consecutive missing workdays; a non-workday in between
// neither counts nor breaks a run.
func (c *IntegrityChecker) Run(ctx context.Context, filters entity.CheckFilters, trigger entity.TriggerType, checkUser string) (*entity.CheckResult, error) {
	if err := validateRange(filters, c.cfg.MaxRangeDays); err != nil {
		return nil, err
	}

	stats, err := c.calendar.CalculateWorkdays(ctx, filters.StartDate, filters.EndDate)
	if err != nil {
		return nil, err
	}
	records, err := c.records.ListInRange(ctx, filters)
	if err != nil {
		return nil, err
	}

	users := groupByUser(records)
	userNames := make([]string, 0, len(users))
	for name := range users {
		userNames = append(userNames, name)
	}
	sort.Strings(userNames)

	var issues []entity.IntegrityIssue
	summary := &entity.IntegritySummary{
		TotalUsers:           len(users),
		ExpectedWorkdaySlots: len(users) * stats.Workdays,
	}

	for _, name := range userNames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		u := users[name]

		missing := c.missingGaps(name, u, stats.WorkdayDates)
		if len(missing) > 0 {
			summary.MissingUsers++
			for _, issue := range missing {
				summary.TotalMissingWorkdays += issue.AffectedWorkdays
			}
			issues = append(issues, missing...)
		}

		duplicates, duplicateDays := c.duplicateIssues(name, u)
		if len(duplicates) > 0 {
			summary.DuplicateUsers++
			summary.TotalDuplicateWorkdays += duplicateDays
			issues = append(issues, duplicates...)
		}
	}

	summary.IntegrityRate = roundPercent(
		summary.ExpectedWorkdaySlots-summary.TotalMissingWorkdays,
		summary.ExpectedWorkdaySlots,
	)

	result := &entity.CheckResult{
		CheckType:        entity.CheckIntegrity,
		Filters:          filters,
		IntegritySummary: summary,
		IntegrityIssues:  issues,
		TriggeredBy:      trigger,
		CheckUser:        checkUser,
		CheckTime:        time.Now(),
	}
	if err := c.store.Save(ctx, result); err != nil {
		return nil, err
	}

	c.logger.Info("Integrity check completed",
		zap.String("check_no", result.CheckNo),
		zap.Int("users", summary.TotalUsers),
		zap.Int("missing_workdays", summary.TotalMissingWorkdays),
		zap.Int("duplicate_workdays", summary.TotalDuplicateWorkdays),
		zap.Float64("integrity_rate", summary.IntegrityRate))
	return result, nil
}

// missingGaps walks the expected workdays in order and coalesces consecutive
// missing ones into single findings.
func (c *IntegrityChecker) missingGaps(userName string, u *userDays, workdays []time.Time) []entity.IntegrityIssue {
	var issues []entity.IntegrityIssue
	var gap *entity.IntegrityIssue

	flush := func() {
		if gap != nil {
			issues = append(issues, *gap)
			gap = nil
		}
	}

	for _, day := range workdays {
		if _, ok := u.byDate[day.Format("2006-01-02")]; ok {
			flush()
			continue
		}
		if gap == nil {
			gap = &entity.IntegrityIssue{
				DeptName:  u.deptName,
				UserName:  userName,
				IssueType: entity.IssueMissing,
				GapStart:  day,
			}
		}
		gap.GapEnd = day
		gap.AffectedWorkdays++
	}
	flush()
	return issues
}

// duplicateIssues reports one finding per extra record beyond the first on
// any date, each carrying the extra record's serial number, plus the number
// of distinct dates affected.
func (c *IntegrityChecker) duplicateIssues(userName string, u *userDays) ([]entity.IntegrityIssue, int) {
	dates := make([]string, 0, len(u.byDate))
	for date, recs := range u.byDate {
		if len(recs) > 1 {
			dates = append(dates, date)
		}
	}
	sort.Strings(dates)

	var issues []entity.IntegrityIssue
	for _, date := range dates {
		recs := u.byDate[date]
		for _, extra := range recs[1:] {
			issues = append(issues, entity.IntegrityIssue{
				DeptName:         u.deptName,
				UserName:         userName,
				IssueType:        entity.IssueDuplicate,
				GapStart:         extra.WorkDate,
				GapEnd:           extra.WorkDate,
				AffectedWorkdays: 1,
				SerialNo:         extra.SerialNo,
			})
		}
	}
	return issues, len(dates)
}

func groupByUser(records []*entity.TimeReportRecord) map[string]*userDays {
	users := make(map[string]*userDays)
	for _, rec := range records {
		u, ok := users[rec.UserName]
		if !ok {
			u = &userDays{
				deptName: rec.DeptName,
				byDate:   make(map[string][]*entity.TimeReportRecord),
			}
			users[rec.UserName] = u
		}
		key := rec.WorkDate.Format("2006-01-02")
		u.byDate[key] = append(u.byDate[key], rec)
	}
	return users
}
