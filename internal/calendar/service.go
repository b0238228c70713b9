// Package calendar resolves dates to workday classifications by combining a
// persisted holiday table with generated weekend entries and defaults.
package calendar

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openhours/workcheck/internal/domain/entity"
	"github.com/openhours/workcheck/internal/repository"
	"github.com/openhours/workcheck/pkg/database"
)

const dateLayout = "2006-01-02"

// Service is the workday calendar. Reads classify against a snapshot of the
// stored entries; mutations (generate, sync, add, delete) serialize per
// affected year so concurrent writers cannot interleave a partial replace.
type Service struct {
	db       *database.DB
	repo     *repository.HolidayRepository
	provider Provider
	logger   *zap.Logger

	mu        sync.Mutex
	yearLocks map[int]*sync.Mutex
}

// NewService creates a calendar service. provider may be nil when no
// external holiday source is configured; SyncHolidays then fails cleanly.
func NewService(db *database.DB, repo *repository.HolidayRepository, provider Provider, logger *zap.Logger) *Service {
	return &Service{
		db:        db,
		repo:      repo,
		provider:  provider,
		logger:    logger,
		yearLocks: make(map[int]*sync.Mutex),
	}
}

func (s *Service) lockYear(year int) func() {
	s.mu.Lock()
	lock, ok := s.yearLocks[year]
	if !ok {
		lock = &sync.Mutex{}
		s.yearLocks[year] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// defaultClass is the classification of a date with no stored entry.
func defaultClass(date time.Time) entity.DayClass {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return entity.DayWeekend
	default:
		return entity.DayWorkday
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Classify resolves a single date. Dates without a stored entry fall back
// to the weekday rule and are reported with source=generated.
func (s *Service) Classify(ctx context.Context, date time.Time) (*entity.CalendarDay, error) {
	date = dateOnly(date)

	day, err := s.repo.GetByDate(ctx, nil, date.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	if day != nil {
		return day, nil
	}

	return &entity.CalendarDay{
		Date:           date,
		Classification: defaultClass(date),
		Source:         entity.SourceGenerated,
		Year:           date.Year(),
	}, nil
}

// CalculateWorkdays walks every day in the inclusive range and classifies
// it. A day counts as a workday iff its classification is workday or
// compensatory; a stored compensatory entry therefore wins over the
// weekend default.
func (s *Service) CalculateWorkdays(ctx context.Context, start, end time.Time) (*entity.WorkdayStats, error) {
	start, end = dateOnly(start), dateOnly(end)
	if end.Before(start) {
		return nil, fmt.Errorf("end date %s before start date %s", end.Format(dateLayout), start.Format(dateLayout))
	}

	entries, err := s.repo.ListRange(ctx, start.Format(dateLayout), end.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	byDate := make(map[string]*entity.CalendarDay, len(entries))
	for _, e := range entries {
		byDate[e.Date.Format(dateLayout)] = e
	}

	stats := &entity.WorkdayStats{}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stats.TotalDays++

		class := defaultClass(d)
		if e, ok := byDate[d.Format(dateLayout)]; ok {
			class = e.Classification
		}

		switch class {
		case entity.DayWorkday, entity.DayCompensatory:
			stats.Workdays++
			stats.WorkdayDates = append(stats.WorkdayDates, d)
		case entity.DayWeekend:
			stats.WeekendDays++
		case entity.DayHoliday:
			stats.HolidayDays++
		}
	}
	return stats, nil
}

// GenerateWeekends inserts a weekend entry for every Saturday and Sunday of
// the year not already present, and returns how many were created. Existing
// entries of any source are left alone.
func (s *Service) GenerateWeekends(ctx context.Context, year int, createdBy string) (int, error) {
	unlock := s.lockYear(year)
	defer unlock()

	existing, err := s.repo.ListYear(ctx, year)
	if err != nil {
		return 0, err
	}
	occupied := make(map[string]bool, len(existing))
	for _, e := range existing {
		occupied[e.Date.Format(dateLayout)] = true
	}

	created := 0
	err = s.db.WithTransaction(func(tx *sql.Tx) error {
		for d := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC); d.Year() == year; d = d.AddDate(0, 0, 1) {
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
				continue
			}
			if occupied[d.Format(dateLayout)] {
				continue
			}
			day := &entity.CalendarDay{
				Date:           d,
				Classification: entity.DayWeekend,
				Source:         entity.SourceGenerated,
				Year:           year,
				CreatedBy:      createdBy,
			}
			if err := s.repo.Create(ctx, tx, day); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Generated weekend entries",
		zap.Int("year", year),
		zap.Int("created", created))
	return created, nil
}

// SyncHolidays replaces all source=synced entries for the year with the
// provider's authoritative list. The replace happens in one transaction, so
// a provider failure leaves existing data untouched. Manual entries are
// never overwritten; a generated weekend entry on a holiday date is
// replaced, since the authoritative classification wins over the derived
// one.
func (s *Service) SyncHolidays(ctx context.Context, year int, createdBy string) (int, error) {
	if s.provider == nil {
		return 0, &entity.CalendarSyncError{Year: year, Err: fmt.Errorf("no holiday provider configured")}
	}

	unlock := s.lockYear(year)
	defer unlock()

	holidays, err := s.provider.FetchYear(ctx, year)
	if err != nil {
		return 0, &entity.CalendarSyncError{Year: year, Err: err}
	}

	synced := 0
	err = s.db.WithTransaction(func(tx *sql.Tx) error {
		if err := s.repo.DeleteSynced(ctx, tx, year); err != nil {
			return err
		}

		for _, h := range holidays {
			date, err := time.Parse(dateLayout, h.Date)
			if err != nil {
				return fmt.Errorf("provider returned malformed date %q: %w", h.Date, err)
			}
			if date.Year() != year {
				continue
			}

			existing, err := s.repo.GetByDate(ctx, tx, h.Date)
			if err != nil {
				return err
			}
			if existing != nil {
				if existing.Source == entity.SourceManual {
					continue
				}
				if err := s.repo.DeleteGeneratedByDate(ctx, tx, h.Date); err != nil {
					return err
				}
			}

			class := entity.DayHoliday
			if h.Compensatory {
				class = entity.DayCompensatory
			}
			day := &entity.CalendarDay{
				Date:           date,
				Classification: class,
				Label:          h.Name,
				Source:         entity.SourceSynced,
				Year:           year,
				CreatedBy:      createdBy,
			}
			if err := s.repo.Create(ctx, tx, day); err != nil {
				return err
			}
			synced++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Synced holiday entries",
		zap.Int("year", year),
		zap.Int("synced", synced))
	return synced, nil
}

// AddHoliday creates a manual calendar entry. compensatory marks a worked
// weekend; otherwise the entry is a holiday. Occupied dates fail with
// entity.ErrDateOccupied, except that a generated weekend entry is replaced
// (delete plus recreate, entries are never mutated in place).
func (s *Service) AddHoliday(ctx context.Context, date time.Time, label string, compensatory bool, createdBy string) (*entity.CalendarDay, error) {
	date = dateOnly(date)
	unlock := s.lockYear(date.Year())
	defer unlock()

	class := entity.DayHoliday
	if compensatory {
		class = entity.DayCompensatory
	}
	day := &entity.CalendarDay{
		Date:           date,
		Classification: class,
		Label:          label,
		Source:         entity.SourceManual,
		Year:           date.Year(),
		CreatedBy:      createdBy,
	}

	err := s.db.WithTransaction(func(tx *sql.Tx) error {
		existing, err := s.repo.GetByDate(ctx, tx, date.Format(dateLayout))
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.Source != entity.SourceGenerated {
				return fmt.Errorf("%s: %w", date.Format(dateLayout), entity.ErrDateOccupied)
			}
			if err := s.repo.DeleteGeneratedByDate(ctx, tx, date.Format(dateLayout)); err != nil {
				return err
			}
		}
		return s.repo.Create(ctx, tx, day)
	})
	if err != nil {
		return nil, err
	}
	return day, nil
}

// DeleteHoliday removes a calendar entry by id.
func (s *Service) DeleteHoliday(ctx context.Context, id int64) error {
	day, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	unlock := s.lockYear(day.Year)
	defer unlock()
	return s.repo.DeleteByID(ctx, id)
}

// ListHolidays returns a page of calendar entries, optionally restricted to
// one year (pass 0 for all), ordered by date.
func (s *Service) ListHolidays(ctx context.Context, year, page, size int) ([]*entity.CalendarDay, int, error) {
	return s.repo.List(ctx, year, page, size)
}
