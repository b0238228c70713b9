package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/openhours/workcheck/internal/domain/entity"
)

// BatchRepository persists import batch summaries and their row errors.
// Batches are finalized once inside the import transaction and never
// mutated afterwards.
type BatchRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewBatchRepository creates a new batch repository.
func NewBatchRepository(db *sql.DB, logger *zap.Logger) *BatchRepository {
	return &BatchRepository{db: db, logger: logger}
}

const batchColumns = `id, batch_no, file_name, file_size, total_rows, success_rows,
	repeat_rows, invalid_rows, row_errors, duplicate_strategy, imported_by, imported_at`

// Create inserts a finalized batch within the supplied transaction. Row
// errors keep their file order in a JSON column.
func (r *BatchRepository) Create(ctx context.Context, tx *sql.Tx, batch *entity.ImportBatch) error {
	rowErrors, err := json.Marshal(batch.RowErrors)
	if err != nil {
		return fmt.Errorf("failed to marshal row errors: %w", err)
	}

	query := `
		INSERT INTO import_batches (
			batch_no, file_name, file_size, total_rows, success_rows,
			repeat_rows, invalid_rows, row_errors, duplicate_strategy, imported_by, imported_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := pick(r.db, tx).ExecContext(ctx, query,
		batch.BatchNo,
		batch.FileName,
		batch.FileSize,
		batch.TotalRows,
		batch.SuccessRows,
		batch.RepeatRows,
		batch.InvalidRows,
		string(rowErrors),
		string(batch.DuplicateStrategy),
		batch.ImportedBy,
		formatDatetime(batch.ImportedAt),
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("batch number %s already exists: %w", batch.BatchNo, err)
		}
		r.logger.Error("Failed to create import batch",
			zap.String("batch_no", batch.BatchNo),
			zap.Error(err))
		return fmt.Errorf("failed to create import batch: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	batch.ID = id
	return nil
}

// GetByBatchNo returns one batch with its row errors, or entity.ErrNotFound.
func (r *BatchRepository) GetByBatchNo(ctx context.Context, batchNo string) (*entity.ImportBatch, error) {
	query := fmt.Sprintf(`SELECT %s FROM import_batches WHERE batch_no = ?`, batchColumns)
	batch, err := r.scanBatch(r.db.QueryRowContext(ctx, query, batchNo))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("import batch %s: %w", batchNo, entity.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get import batch",
			zap.String("batch_no", batchNo),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get import batch: %w", err)
	}
	return batch, nil
}

// List returns a page of batches ordered by import time descending, with
// the unpaged total.
func (r *BatchRepository) List(ctx context.Context, page, size int) ([]*entity.ImportBatch, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM import_batches`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count import batches: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM import_batches
		ORDER BY imported_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, batchColumns)

	rows, err := r.db.QueryContext(ctx, query, size, (page-1)*size)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list import batches: %w", err)
	}
	defer rows.Close()

	var batches []*entity.ImportBatch
	for rows.Next() {
		batch, err := r.scanBatch(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan import batch: %w", err)
		}
		batches = append(batches, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return batches, total, nil
}

type batchScanner interface {
	Scan(dest ...any) error
}

func (r *BatchRepository) scanBatch(row batchScanner) (*entity.ImportBatch, error) {
	var batch entity.ImportBatch
	var rowErrors, strategy, importedAt string

	err := row.Scan(
		&batch.ID,
		&batch.BatchNo,
		&batch.FileName,
		&batch.FileSize,
		&batch.TotalRows,
		&batch.SuccessRows,
		&batch.RepeatRows,
		&batch.InvalidRows,
		&rowErrors,
		&strategy,
		&batch.ImportedBy,
		&importedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(rowErrors), &batch.RowErrors); err != nil {
		return nil, fmt.Errorf("failed to unmarshal row errors: %w", err)
	}
	batch.DuplicateStrategy = entity.DuplicateStrategy(strategy)
	if t, err := parseDatetime(importedAt); err == nil {
		batch.ImportedAt = t
	}
	return &batch, nil
}
