package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openhours/workcheck/internal/domain/entity"
)

// RecordRepository persists normalized time-report records. Records are
// written only inside an import transaction; the category breakdown is
// stored as a JSON column.
type RecordRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRecordRepository creates a new record repository.
func NewRecordRepository(db *sql.DB, logger *zap.Logger) *RecordRepository {
	return &RecordRepository{db: db, logger: logger}
}

const recordColumns = `id, serial_no, user_name, dept_name, project_name, start_time, end_time,
	work_date, hours_by_category, import_batch_no, source_row_index, deleted_at, created_at`

// Insert creates a record within the supplied transaction.
func (r *RecordRepository) Insert(ctx context.Context, tx *sql.Tx, rec *entity.TimeReportRecord) error {
	hours, err := json.Marshal(rec.HoursByCategory)
	if err != nil {
		return fmt.Errorf("failed to marshal category hours: %w", err)
	}

	query := `
		INSERT INTO time_report_records (
			serial_no, user_name, dept_name, project_name, start_time, end_time,
			work_date, hours_by_category, import_batch_no, source_row_index
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	var projectName sql.NullString
	if rec.ProjectName != "" {
		projectName = sql.NullString{String: rec.ProjectName, Valid: true}
	}

	result, err := pick(r.db, tx).ExecContext(ctx, query,
		rec.SerialNo,
		rec.UserName,
		rec.DeptName,
		projectName,
		formatDatetime(rec.StartTime),
		formatDatetime(rec.EndTime),
		formatDate(rec.WorkDate),
		string(hours),
		rec.ImportBatchNo,
		rec.SourceRowIndex,
	)
	if err != nil {
		r.logger.Error("Failed to insert time report record",
			zap.String("user", rec.UserName),
			zap.String("batch_no", rec.ImportBatchNo),
			zap.Error(err))
		return fmt.Errorf("failed to insert record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	rec.ID = id
	return nil
}

// Replace overwrites all imported fields of an existing record in place.
// Used by the cover duplicate strategy.
func (r *RecordRepository) Replace(ctx context.Context, tx *sql.Tx, id int64, rec *entity.TimeReportRecord) error {
	hours, err := json.Marshal(rec.HoursByCategory)
	if err != nil {
		return fmt.Errorf("failed to marshal category hours: %w", err)
	}

	query := `
		UPDATE time_report_records
		SET serial_no = ?, user_name = ?, dept_name = ?, project_name = ?,
			start_time = ?, end_time = ?, work_date = ?, hours_by_category = ?,
			import_batch_no = ?, source_row_index = ?, deleted_at = NULL
		WHERE id = ?
	`
	var projectName sql.NullString
	if rec.ProjectName != "" {
		projectName = sql.NullString{String: rec.ProjectName, Valid: true}
	}

	_, err = pick(r.db, tx).ExecContext(ctx, query,
		rec.SerialNo,
		rec.UserName,
		rec.DeptName,
		projectName,
		formatDatetime(rec.StartTime),
		formatDatetime(rec.EndTime),
		formatDate(rec.WorkDate),
		string(hours),
		rec.ImportBatchNo,
		rec.SourceRowIndex,
		id,
	)
	if err != nil {
		r.logger.Error("Failed to replace time report record",
			zap.Int64("id", id),
			zap.Error(err))
		return fmt.Errorf("failed to replace record: %w", err)
	}
	rec.ID = id
	return nil
}

// FindByWindow returns the live record exactly matching (userName,
// startTime, endTime), or nil when there is none. Runs inside the import
// transaction so concurrent imports serialize their dedup decisions.
func (r *RecordRepository) FindByWindow(ctx context.Context, tx *sql.Tx, userName string, start, end time.Time) (*entity.TimeReportRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM time_report_records
		WHERE user_name = ? AND start_time = ? AND end_time = ? AND deleted_at IS NULL
		LIMIT 1
	`, recordColumns)

	rec, err := r.scanRecord(pick(r.db, tx).QueryRowContext(ctx, query, userName, formatDatetime(start), formatDatetime(end)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find record by window: %w", err)
	}
	return rec, nil
}

// ListInRange returns live records with work_date inside the filter range,
// narrowed by the optional dept/user substring filters, ordered by user,
// date, insertion order.
func (r *RecordRepository) ListInRange(ctx context.Context, f entity.CheckFilters) ([]*entity.TimeReportRecord, error) {
	var conditions []string
	var args []any

	conditions = append(conditions, "work_date >= ?", "work_date <= ?", "deleted_at IS NULL")
	args = append(args, formatDate(f.StartDate), formatDate(f.EndDate))

	if f.DeptName != "" {
		conditions = append(conditions, "dept_name LIKE ?")
		args = append(args, "%"+f.DeptName+"%")
	}
	if f.UserName != "" {
		conditions = append(conditions, "user_name LIKE ?")
		args = append(args, "%"+f.UserName+"%")
	}

	query := fmt.Sprintf(`
		SELECT %s FROM time_report_records
		WHERE %s
		ORDER BY user_name, work_date, id
	`, recordColumns, strings.Join(conditions, " AND "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list records in range", zap.Error(err))
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()
	return r.scanRecords(rows)
}

// ListByBatch returns a page of live records belonging to a batch with the
// unpaged total.
func (r *RecordRepository) ListByBatch(ctx context.Context, batchNo string, page, size int) ([]*entity.TimeReportRecord, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM time_report_records WHERE import_batch_no = ? AND deleted_at IS NULL`,
		batchNo,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count batch records: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM time_report_records
		WHERE import_batch_no = ? AND deleted_at IS NULL
		ORDER BY source_row_index
		LIMIT ? OFFSET ?
	`, recordColumns)

	rows, err := r.db.QueryContext(ctx, query, batchNo, size, (page-1)*size)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list batch records: %w", err)
	}
	defer rows.Close()

	records, err := r.scanRecords(rows)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// SoftDeleteByBatch marks every live record of a batch as deleted and
// returns the number of records affected.
func (r *RecordRepository) SoftDeleteByBatch(ctx context.Context, tx *sql.Tx, batchNo string) (int64, error) {
	result, err := pick(r.db, tx).ExecContext(ctx,
		`UPDATE time_report_records SET deleted_at = CURRENT_TIMESTAMP WHERE import_batch_no = ? AND deleted_at IS NULL`,
		batchNo,
	)
	if err != nil {
		r.logger.Error("Failed to soft delete batch records",
			zap.String("batch_no", batchNo),
			zap.Error(err))
		return 0, fmt.Errorf("failed to soft delete batch records: %w", err)
	}
	return result.RowsAffected()
}

type recordScanner interface {
	Scan(dest ...any) error
}

func (r *RecordRepository) scanRecord(row recordScanner) (*entity.TimeReportRecord, error) {
	var rec entity.TimeReportRecord
	var projectName, deletedAt sql.NullString
	var startTime, endTime, workDate, hours, createdAt string

	err := row.Scan(
		&rec.ID,
		&rec.SerialNo,
		&rec.UserName,
		&rec.DeptName,
		&projectName,
		&startTime,
		&endTime,
		&workDate,
		&hours,
		&rec.ImportBatchNo,
		&rec.SourceRowIndex,
		&deletedAt,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	if projectName.Valid {
		rec.ProjectName = projectName.String
	}
	if rec.StartTime, err = parseDatetime(startTime); err != nil {
		return nil, fmt.Errorf("failed to parse stored start time %q: %w", startTime, err)
	}
	if rec.EndTime, err = parseDatetime(endTime); err != nil {
		return nil, fmt.Errorf("failed to parse stored end time %q: %w", endTime, err)
	}
	if rec.WorkDate, err = parseDate(workDate); err != nil {
		return nil, fmt.Errorf("failed to parse stored work date %q: %w", workDate, err)
	}
	if err := json.Unmarshal([]byte(hours), &rec.HoursByCategory); err != nil {
		return nil, fmt.Errorf("failed to unmarshal category hours: %w", err)
	}
	if deletedAt.Valid {
		if t, err := parseDatetime(deletedAt.String); err == nil {
			rec.DeletedAt = &t
		}
	}
	if t, err := parseDatetime(createdAt); err == nil {
		rec.CreatedAt = t
	}
	return &rec, nil
}

func (r *RecordRepository) scanRecords(rows *sql.Rows) ([]*entity.TimeReportRecord, error) {
	var records []*entity.TimeReportRecord
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
