package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/openhours/workcheck/internal/domain/entity"
	"github.com/openhours/workcheck/pkg/database"
	"github.com/openhours/workcheck/pkg/utils"
)

// CheckRunRepository is the check-run store: every checker invocation is
// persisted under a generated check number and retrievable indefinitely.
// Summary and issues are written in one transaction so a reader never sees
// one without the other.
type CheckRunRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewCheckRunRepository creates a new check-run repository.
func NewCheckRunRepository(db *database.DB, logger *zap.Logger) *CheckRunRepository {
	return &CheckRunRepository{db: db, logger: logger}
}

// checkNoAttempts bounds regeneration on a uniqueness-constraint failure.
const checkNoAttempts = 5

const checkRunColumns = `id, check_no, check_type, start_date, end_date, dept_name, user_name,
	summary, issue_count, triggered_by, check_user, check_time`

// Save assigns a check number and persists the result atomically. The
// generated number is written back to result.CheckNo.
func (r *CheckRunRepository) Save(ctx context.Context, result *entity.CheckResult) error {
	summary, err := r.marshalSummary(result)
	if err != nil {
		return err
	}

	for attempt := 0; attempt < checkNoAttempts; attempt++ {
		result.CheckNo = utils.NewCheckNo()

		err = r.db.WithTransaction(func(tx *sql.Tx) error {
			return r.insert(ctx, tx, result, summary)
		})
		if err == nil {
			return nil
		}
		if !IsUniqueViolation(err) {
			r.logger.Error("Failed to save check run",
				zap.String("check_no", result.CheckNo),
				zap.Error(err))
			return fmt.Errorf("failed to save check run: %w", err)
		}
		r.logger.Warn("Check number collision, regenerating",
			zap.String("check_no", result.CheckNo))
	}
	return fmt.Errorf("failed to save check run after %d attempts: %w", checkNoAttempts, err)
}

func (r *CheckRunRepository) insert(ctx context.Context, tx *sql.Tx, result *entity.CheckResult, summary []byte) error {
	var deptName, userName sql.NullString
	if result.Filters.DeptName != "" {
		deptName = sql.NullString{String: result.Filters.DeptName, Valid: true}
	}
	if result.Filters.UserName != "" {
		userName = sql.NullString{String: result.Filters.UserName, Valid: true}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO check_runs (
			check_no, check_type, start_date, end_date, dept_name, user_name,
			summary, issue_count, triggered_by, check_user, check_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		result.CheckNo,
		string(result.CheckType),
		formatDate(result.Filters.StartDate),
		formatDate(result.Filters.EndDate),
		deptName,
		userName,
		string(summary),
		result.IssueCount(),
		string(result.TriggeredBy),
		result.CheckUser,
		formatDatetime(result.CheckTime),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	result.ID = id

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO check_issues (check_no, seq, payload) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare issue insert: %w", err)
	}
	defer stmt.Close()

	insertIssue := func(seq int, issue any) error {
		payload, err := json.Marshal(issue)
		if err != nil {
			return fmt.Errorf("failed to marshal issue: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, result.CheckNo, seq, string(payload)); err != nil {
			return fmt.Errorf("failed to insert issue: %w", err)
		}
		return nil
	}

	switch result.CheckType {
	case entity.CheckIntegrity:
		for i, issue := range result.IntegrityIssues {
			if err := insertIssue(i, issue); err != nil {
				return err
			}
		}
	case entity.CheckCompliance:
		for i, issue := range result.ComplianceIssues {
			if err := insertIssue(i, issue); err != nil {
				return err
			}
		}
	}
	return nil
}

// Get returns the full check run including ordered issues, or
// entity.ErrNotFound. A run whose stored issues disagree with its recorded
// issue count surfaces a ConsistencyError instead of a truncated result.
func (r *CheckRunRepository) Get(ctx context.Context, checkNo string) (*entity.CheckResult, error) {
	query := fmt.Sprintf(`SELECT %s FROM check_runs WHERE check_no = ?`, checkRunColumns)
	result, issueCount, err := r.scanRun(r.db.QueryRowContext(ctx, query, checkNo))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("check run %s: %w", checkNo, entity.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get check run", zap.String("check_no", checkNo), zap.Error(err))
		return nil, fmt.Errorf("failed to get check run: %w", err)
	}

	if err := r.loadIssues(ctx, result); err != nil {
		return nil, err
	}
	if result.IssueCount() != issueCount {
		err := &entity.ConsistencyError{
			Message: fmt.Sprintf("check run %s has %d stored issues, expected %d",
				checkNo, result.IssueCount(), issueCount),
		}
		r.logger.Error("Check run issue count mismatch", zap.Error(err))
		return nil, err
	}
	return result, nil
}

// ListQuery filters the check-run history.
type ListQuery struct {
	CheckType entity.CheckType
	CheckUser string // substring match
	StartDate string // date-range overlap, inclusive
	EndDate   string
}

// List returns a page of check runs (summaries, no issue detail) ordered by
// check time descending, with the unpaged total. Date filtering matches
// range overlap: run.start <= q.end AND run.end >= q.start.
func (r *CheckRunRepository) List(ctx context.Context, q ListQuery, page, size int) ([]*entity.CheckResult, int, error) {
	var conditions []string
	var args []any

	if q.CheckType != "" {
		conditions = append(conditions, "check_type = ?")
		args = append(args, string(q.CheckType))
	}
	if q.CheckUser != "" {
		conditions = append(conditions, "check_user LIKE ?")
		args = append(args, "%"+q.CheckUser+"%")
	}
	if q.StartDate != "" && q.EndDate != "" {
		conditions = append(conditions, "start_date <= ? AND end_date >= ?")
		args = append(args, q.EndDate, q.StartDate)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM check_runs"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count check runs: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM check_runs%s
		ORDER BY check_time DESC, id DESC
		LIMIT ? OFFSET ?
	`, checkRunColumns, where)
	args = append(args, size, (page-1)*size)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list check runs", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list check runs: %w", err)
	}
	defer rows.Close()

	var results []*entity.CheckResult
	for rows.Next() {
		result, _, err := r.scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan check run: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func (r *CheckRunRepository) loadIssues(ctx context.Context, result *entity.CheckResult) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT payload FROM check_issues WHERE check_no = ? ORDER BY seq`,
		result.CheckNo,
	)
	if err != nil {
		return fmt.Errorf("failed to load check issues: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return fmt.Errorf("failed to scan check issue: %w", err)
		}
		switch result.CheckType {
		case entity.CheckIntegrity:
			var issue entity.IntegrityIssue
			if err := json.Unmarshal([]byte(payload), &issue); err != nil {
				return fmt.Errorf("failed to unmarshal integrity issue: %w", err)
			}
			result.IntegrityIssues = append(result.IntegrityIssues, issue)
		case entity.CheckCompliance:
			var issue entity.ComplianceIssue
			if err := json.Unmarshal([]byte(payload), &issue); err != nil {
				return fmt.Errorf("failed to unmarshal compliance issue: %w", err)
			}
			result.ComplianceIssues = append(result.ComplianceIssues, issue)
		}
	}
	return rows.Err()
}

func (r *CheckRunRepository) marshalSummary(result *entity.CheckResult) ([]byte, error) {
	switch result.CheckType {
	case entity.CheckIntegrity:
		if result.IntegritySummary == nil {
			return nil, &entity.ConsistencyError{Message: "integrity check run without summary"}
		}
		return json.Marshal(result.IntegritySummary)
	case entity.CheckCompliance:
		if result.ComplianceSummary == nil {
			return nil, &entity.ConsistencyError{Message: "compliance check run without summary"}
		}
		return json.Marshal(result.ComplianceSummary)
	default:
		return nil, fmt.Errorf("unknown check type %q", result.CheckType)
	}
}

type runScanner interface {
	Scan(dest ...any) error
}

func (r *CheckRunRepository) scanRun(row runScanner) (*entity.CheckResult, int, error) {
	var result entity.CheckResult
	var checkType, startDate, endDate, summary, triggeredBy, checkTime string
	var deptName, userName sql.NullString
	var issueCount int

	err := row.Scan(
		&result.ID,
		&result.CheckNo,
		&checkType,
		&startDate,
		&endDate,
		&deptName,
		&userName,
		&summary,
		&issueCount,
		&triggeredBy,
		&result.CheckUser,
		&checkTime,
	)
	if err != nil {
		return nil, 0, err
	}

	result.CheckType = entity.CheckType(checkType)
	result.TriggeredBy = entity.TriggerType(triggeredBy)
	if result.Filters.StartDate, err = parseDate(startDate); err != nil {
		return nil, 0, fmt.Errorf("failed to parse stored start date %q: %w", startDate, err)
	}
	if result.Filters.EndDate, err = parseDate(endDate); err != nil {
		return nil, 0, fmt.Errorf("failed to parse stored end date %q: %w", endDate, err)
	}
	if deptName.Valid {
		result.Filters.DeptName = deptName.String
	}
	if userName.Valid {
		result.Filters.UserName = userName.String
	}
	if t, err := parseDatetime(checkTime); err == nil {
		result.CheckTime = t
	}

	switch result.CheckType {
	case entity.CheckIntegrity:
		var s entity.IntegritySummary
		if err := json.Unmarshal([]byte(summary), &s); err != nil {
			return nil, 0, fmt.Errorf("failed to unmarshal integrity summary: %w", err)
		}
		result.IntegritySummary = &s
	case entity.CheckCompliance:
		var s entity.ComplianceSummary
		if err := json.Unmarshal([]byte(summary), &s); err != nil {
			return nil, 0, fmt.Errorf("failed to unmarshal compliance summary: %w", err)
		}
		result.ComplianceSummary = &s
	}
	return &result, issueCount, nil
}
