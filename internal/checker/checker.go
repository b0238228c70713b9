// Package checker evaluates persisted time-report records against the
// integrity and compliance rule sets, and records every run as a
// retrievable check result.
package checker

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openhours/workcheck/internal/domain/entity"
)

// RecordSource supplies the records a check run evaluates.
type RecordSource interface {
	ListInRange(ctx context.Context, f entity.CheckFilters) ([]*entity.TimeReportRecord, error)
}

// Calendar resolves the expected workdays of a date range.
type Calendar interface {
	CalculateWorkdays(ctx context.Context, start, end time.Time) (*entity.WorkdayStats, error)
}

// RunStore persists completed check results.
type RunStore interface {
	Save(ctx context.Context, result *entity.CheckResult) error
}

// validateRange rejects inverted ranges and ranges wider than the configured
// maximum before any record is read.
func validateRange(f entity.CheckFilters, maxRangeDays int) error {
	if f.StartDate.IsZero() || f.EndDate.IsZero() {
		return fmt.Errorf("start and end date are required: %w", entity.ErrInvalidRange)
	}
	if f.EndDate.Before(f.StartDate) {
		return fmt.Errorf("end date %s before start date %s: %w",
			f.EndDate.Format("2006-01-02"), f.StartDate.Format("2006-01-02"), entity.ErrInvalidRange)
	}
	days := int(f.EndDate.Sub(f.StartDate).Hours()/24) + 1
	if days > maxRangeDays {
		return fmt.Errorf("range spans %d days, limit %d: %w", days, maxRangeDays, entity.ErrInvalidRange)
	}
	return nil
}

// roundPercent converts a ratio to a percentage with one decimal.
func roundPercent(numerator, denominator int) float64 {
	if denominator == 0 {
		return 100.0
	}
	rate := decimal.NewFromInt(int64(numerator)).
		Div(decimal.NewFromInt(int64(denominator))).
		Mul(decimal.NewFromInt(100))
	return rate.Round(1).InexactFloat64()
}
