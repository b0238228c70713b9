package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/openhours/workcheck/internal/domain/entity"
)

// HolidayRepository persists calendar entries. One row per date; the unique
// index on the date column enforces the single-classification invariant.
type HolidayRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHolidayRepository creates a new holiday repository.
func NewHolidayRepository(db *sql.DB, logger *zap.Logger) *HolidayRepository {
	return &HolidayRepository{db: db, logger: logger}
}

const calendarColumns = `id, day_date, classification, label, source, year, created_by, created_at`

// Create inserts a calendar entry. A second entry for an occupied date fails
// with entity.ErrDateOccupied.
func (r *HolidayRepository) Create(ctx context.Context, tx *sql.Tx, day *entity.CalendarDay) error {
	query := `
		INSERT INTO calendar_days (day_date, classification, label, source, year, created_by)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := pick(r.db, tx).ExecContext(ctx, query,
		formatDate(day.Date),
		string(day.Classification),
		day.Label,
		string(day.Source),
		day.Year,
		day.CreatedBy,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%s: %w", formatDate(day.Date), entity.ErrDateOccupied)
		}
		r.logger.Error("Failed to create calendar entry",
			zap.String("date", formatDate(day.Date)),
			zap.Error(err))
		return fmt.Errorf("failed to create calendar entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	day.ID = id
	return nil
}

// GetByDate returns the entry for a date, or nil when the date has no
// entry. Passing the calendar-mutation transaction makes the read see its
// own uncommitted changes.
func (r *HolidayRepository) GetByDate(ctx context.Context, tx *sql.Tx, date string) (*entity.CalendarDay, error) {
	query := fmt.Sprintf(`SELECT %s FROM calendar_days WHERE day_date = ?`, calendarColumns)
	day, err := r.scanDay(pick(r.db, tx).QueryRowContext(ctx, query, date))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar entry: %w", err)
	}
	return day, nil
}

// GetByID returns the entry with the given id or entity.ErrNotFound.
func (r *HolidayRepository) GetByID(ctx context.Context, id int64) (*entity.CalendarDay, error) {
	query := fmt.Sprintf(`SELECT %s FROM calendar_days WHERE id = ?`, calendarColumns)
	day, err := r.scanDay(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("calendar entry %d: %w", id, entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar entry: %w", err)
	}
	return day, nil
}

// ListRange returns all entries with start <= date <= end ordered by date.
func (r *HolidayRepository) ListRange(ctx context.Context, start, end string) ([]*entity.CalendarDay, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM calendar_days
		WHERE day_date >= ? AND day_date <= ?
		ORDER BY day_date
	`, calendarColumns)

	rows, err := r.db.QueryContext(ctx, query, start, end)
	if err != nil {
		r.logger.Error("Failed to list calendar range", zap.Error(err))
		return nil, fmt.Errorf("failed to list calendar entries: %w", err)
	}
	defer rows.Close()
	return r.scanDays(rows)
}

// ListYear returns all entries for a year ordered by date.
func (r *HolidayRepository) ListYear(ctx context.Context, year int) ([]*entity.CalendarDay, error) {
	query := fmt.Sprintf(`SELECT %s FROM calendar_days WHERE year = ? ORDER BY day_date`, calendarColumns)
	rows, err := r.db.QueryContext(ctx, query, year)
	if err != nil {
		r.logger.Error("Failed to list calendar year", zap.Int("year", year), zap.Error(err))
		return nil, fmt.Errorf("failed to list calendar entries: %w", err)
	}
	defer rows.Close()
	return r.scanDays(rows)
}

// List returns a page of entries, optionally restricted to one year, with
// the unpaged total.
func (r *HolidayRepository) List(ctx context.Context, year int, page, size int) ([]*entity.CalendarDay, int, error) {
	where := ""
	args := []any{}
	if year > 0 {
		where = " WHERE year = ?"
		args = append(args, year)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM calendar_days"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count calendar entries: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM calendar_days%s ORDER BY day_date LIMIT ? OFFSET ?`, calendarColumns, where)
	args = append(args, size, (page-1)*size)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list calendar entries: %w", err)
	}
	defer rows.Close()

	days, err := r.scanDays(rows)
	if err != nil {
		return nil, 0, err
	}
	return days, total, nil
}

// DeleteByID removes one entry; unknown ids fail with entity.ErrNotFound.
func (r *HolidayRepository) DeleteByID(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM calendar_days WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete calendar entry", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete calendar entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("calendar entry %d: %w", id, entity.ErrNotFound)
	}
	return nil
}

// DeleteSynced removes every source=synced entry for a year. Used by holiday
// sync so a re-sync replaces stale provider data.
func (r *HolidayRepository) DeleteSynced(ctx context.Context, tx *sql.Tx, year int) error {
	_, err := pick(r.db, tx).ExecContext(ctx,
		`DELETE FROM calendar_days WHERE year = ? AND source = ?`,
		year, string(entity.SourceSynced),
	)
	if err != nil {
		return fmt.Errorf("failed to delete synced entries: %w", err)
	}
	return nil
}

// DeleteGeneratedByDate removes a source=generated entry on one date, if any.
// Sync uses this when an authoritative holiday lands on a generated weekend.
func (r *HolidayRepository) DeleteGeneratedByDate(ctx context.Context, tx *sql.Tx, date string) error {
	_, err := pick(r.db, tx).ExecContext(ctx,
		`DELETE FROM calendar_days WHERE day_date = ? AND source = ?`,
		date, string(entity.SourceGenerated),
	)
	if err != nil {
		return fmt.Errorf("failed to delete generated entry: %w", err)
	}
	return nil
}

func (r *HolidayRepository) scanDay(row *sql.Row) (*entity.CalendarDay, error) {
	var day entity.CalendarDay
	var dayDate, classification, source, createdAt string

	err := row.Scan(&day.ID, &dayDate, &classification, &day.Label, &source, &day.Year, &day.CreatedBy, &createdAt)
	if err != nil {
		return nil, err
	}
	return r.finishDay(&day, dayDate, classification, source, createdAt)
}

func (r *HolidayRepository) scanDays(rows *sql.Rows) ([]*entity.CalendarDay, error) {
	var days []*entity.CalendarDay
	for rows.Next() {
		var day entity.CalendarDay
		var dayDate, classification, source, createdAt string

		err := rows.Scan(&day.ID, &dayDate, &classification, &day.Label, &source, &day.Year, &day.CreatedBy, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan calendar entry: %w", err)
		}
		d, err := r.finishDay(&day, dayDate, classification, source, createdAt)
		if err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

func (r *HolidayRepository) finishDay(day *entity.CalendarDay, dayDate, classification, source, createdAt string) (*entity.CalendarDay, error) {
	date, err := parseDate(dayDate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored date %q: %w", dayDate, err)
	}
	day.Date = date
	day.Classification = entity.DayClass(classification)
	day.Source = entity.DaySource(source)
	if t, err := parseDatetime(createdAt); err == nil {
		day.CreatedAt = t
	}
	return day, nil
}
