package checker

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openhours/workcheck/internal/config"
	"github.com/openhours/workcheck/internal/domain/entity"
)

// ComplianceChecker evaluates each record's total hours against the
// configured legal thresholds.
type ComplianceChecker struct {
	records RecordSource
	store   RunStore
	cfg     config.CheckConfig
	logger  *zap.Logger
}

// NewComplianceChecker creates a new compliance checker.
func NewComplianceChecker(records RecordSource, store RunStore, cfg config.CheckConfig, logger *zap.Logger) *ComplianceChecker {
	return &ComplianceChecker{
		records: records,
		store:   store,
		cfg:     cfg,
		logger:  logger,
	}
}

// Thresholds are the hour limits one compliance run evaluates against. Zero
// values fall back to the configured defaults; the thresholds are resolved
// once per run and hold for every record.
type Thresholds struct {
	StandardHours      float64
	MinHours           float64
	MaxOvertime        float64
	MaxMonthlyOvertime float64
}

func (c *ComplianceChecker) resolve(t Thresholds) Thresholds {
	if t.StandardHours == 0 {
		t.StandardHours = c.cfg.StandardHours
	}
	if t.MinHours == 0 {
		t.MinHours = c.cfg.MinHours
	}
	if t.MaxOvertime == 0 {
		t.MaxOvertime = c.cfg.MaxOvertime
	}
	if t.MaxMonthlyOvertime == 0 {
		t.MaxMonthlyOvertime = c.cfg.MaxMonthlyOvertime
	}
	return t
}

// Run evaluates the range and persists the result. A record is short below
// legalMin (inclusive boundary, exactly legalMin is normal) and excess above
// the expected standard hours; legalMax = standard + maxOvertime is reported
// on issues for context. Issues are recorded for short and excess records
// only.
func (c *ComplianceChecker) Run(ctx context.Context, filters entity.CheckFilters, t Thresholds, trigger entity.TriggerType, checkUser string) (*entity.CheckResult, error) {
	if err := validateRange(filters, c.cfg.MaxRangeDays); err != nil {
		return nil, err
	}
	t = c.resolve(t)

	records, err := c.records.ListInRange(ctx, filters)
	if err != nil {
		return nil, err
	}

	legalMin := decimal.NewFromFloat(t.MinHours)
	legalMax := decimal.NewFromFloat(t.StandardHours).Add(decimal.NewFromFloat(t.MaxOvertime))
	expected := decimal.NewFromFloat(t.StandardHours)

	var issues []entity.ComplianceIssue
	summary := &entity.ComplianceSummary{
		TotalRecords:  len(records),
		WorkTypeStats: make(map[string]entity.CategoryStats),
	}
	categoryTotals := make(map[string]decimal.Decimal)
	categoryCounts := make(map[string]int)
	overtimeByUserMonth := make(map[string]map[string]decimal.Decimal)

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		total := recordHours(rec)

		var status entity.ComplianceStatus
		switch {
		case total.LessThan(legalMin):
			status = entity.StatusShort
			summary.ShortRecords++
		case total.GreaterThan(expected):
			status = entity.StatusExcess
			summary.ExcessRecords++
		default:
			status = entity.StatusNormal
			summary.NormalRecords++
		}

		if status != entity.StatusNormal {
			issues = append(issues, entity.ComplianceIssue{
				DeptName:      rec.DeptName,
				UserName:      rec.UserName,
				SerialNo:      rec.SerialNo,
				Date:          rec.WorkDate,
				TotalHours:    total.Round(2).InexactFloat64(),
				ExpectedHours: expected.InexactFloat64(),
				LegalMin:      legalMin.InexactFloat64(),
				LegalMax:      legalMax.InexactFloat64(),
				Difference:    total.Sub(expected).Round(2).InexactFloat64(),
				Status:        status,
			})
		}

		for category, hours := range rec.HoursByCategory {
			categoryTotals[category] = categoryTotals[category].Add(decimal.NewFromFloat(hours))
			categoryCounts[category]++
		}

		if ot, ok := rec.HoursByCategory[c.cfg.OvertimeCategory]; ok && ot > 0 {
			month := rec.WorkDate.Format("2006-01")
			if overtimeByUserMonth[rec.UserName] == nil {
				overtimeByUserMonth[rec.UserName] = make(map[string]decimal.Decimal)
			}
			overtimeByUserMonth[rec.UserName][month] =
				overtimeByUserMonth[rec.UserName][month].Add(decimal.NewFromFloat(ot))
		}
	}

	for category, total := range categoryTotals {
		count := categoryCounts[category]
		summary.WorkTypeStats[category] = entity.CategoryStats{
			Records:      count,
			TotalHours:   total.Round(2).InexactFloat64(),
			AverageHours: total.Div(decimal.NewFromInt(int64(count))).Round(2).InexactFloat64(),
		}
	}
	summary.MonthlyOvertime = c.monthlyOvertime(overtimeByUserMonth, t.MaxMonthlyOvertime)
	summary.ComplianceRate = roundPercent(summary.NormalRecords, summary.TotalRecords)

	result := &entity.CheckResult{
		CheckType:         entity.CheckCompliance,
		Filters:           filters,
		ComplianceSummary: summary,
		ComplianceIssues:  issues,
		TriggeredBy:       trigger,
		CheckUser:         checkUser,
		CheckTime:         time.Now(),
	}
	if err := c.store.Save(ctx, result); err != nil {
		return nil, err
	}

	c.logger.Info("Compliance check completed",
		zap.String("check_no", result.CheckNo),
		zap.Int("records", summary.TotalRecords),
		zap.Int("short", summary.ShortRecords),
		zap.Int("excess", summary.ExcessRecords),
		zap.Float64("compliance_rate", summary.ComplianceRate))
	return result, nil
}

// monthlyOvertime reports each user-month whose accumulated overtime exceeds
// the monthly cap, ordered by user then month.
func (c *ComplianceChecker) monthlyOvertime(byUserMonth map[string]map[string]decimal.Decimal, limit float64) []entity.MonthlyOvertime {
	monthlyCap := decimal.NewFromFloat(limit)

	var findings []entity.MonthlyOvertime
	for user, months := range byUserMonth {
		for month, hours := range months {
			if hours.GreaterThan(monthlyCap) {
				findings = append(findings, entity.MonthlyOvertime{
					UserName:      user,
					Month:         month,
					OvertimeHours: hours.Round(2).InexactFloat64(),
					Limit:         limit,
				})
			}
		}
	}
	sort.Slice(findings, func(i, j int) bool {
		if findings[i].UserName != findings[j].UserName {
			return findings[i].UserName < findings[j].UserName
		}
		return findings[i].Month < findings[j].Month
	})
	return findings
}

// recordHours is the total a record is judged on: the category sum when a
// breakdown was supplied, the wall-clock duration otherwise.
func recordHours(rec *entity.TimeReportRecord) decimal.Decimal {
	if !rec.HasBreakdown() {
		return decimal.NewFromFloat(rec.WallClockHours())
	}
	total := decimal.Zero
	for _, hours := range rec.HoursByCategory {
		total = total.Add(decimal.NewFromFloat(hours))
	}
	return total
}
