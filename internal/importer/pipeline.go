package importer

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/openhours/workcheck/internal/config"
	"github.com/openhours/workcheck/internal/domain/entity"
	"github.com/openhours/workcheck/internal/repository"
	"github.com/openhours/workcheck/pkg/database"
	"github.com/openhours/workcheck/pkg/utils"
)

// batchNoAttempts bounds regeneration on a batch-number collision.
const batchNoAttempts = 5

// Service runs the spreadsheet import pipeline: parse, validate, dedup,
// persist. One upload is one transaction; a failed import leaves no rows
// behind.
type Service struct {
	db      *database.DB
	records *repository.RecordRepository
	batches *repository.BatchRepository
	cfg     config.ImportConfig
	logger  *zap.Logger
}

// NewService creates a new import service.
func NewService(
	db *database.DB,
	records *repository.RecordRepository,
	batches *repository.BatchRepository,
	cfg config.ImportConfig,
	logger *zap.Logger,
) *Service {
	return &Service{
		db:      db,
		records: records,
		batches: batches,
		cfg:     cfg,
		logger:  logger,
	}
}

// Options carries per-upload overrides. Zero values fall back to the
// configured defaults; options are resolved once at the start of the import
// and hold for every row of the batch.
type Options struct {
	DuplicateStrategy entity.DuplicateStrategy
	ImportedBy        string
}

func (s *Service) resolve(opts Options) (Options, error) {
	if opts.DuplicateStrategy == "" {
		opts.DuplicateStrategy = entity.DuplicateStrategy(s.cfg.DuplicateStrategy)
	}
	if !opts.DuplicateStrategy.Valid() {
		return opts, fmt.Errorf("unsupported duplicate strategy %q", opts.DuplicateStrategy)
	}
	if opts.ImportedBy == "" {
		opts.ImportedBy = "system"
	}
	return opts, nil
}

// ImportFile imports one spreadsheet. Row-level validation failures are
// collected as row errors and never abort the batch; size and row-count
// limits reject the upload before any row is processed.
func (s *Service) ImportFile(ctx context.Context, fileName string, data []byte, opts Options) (*entity.ImportBatch, error) {
	if int64(len(data)) > s.cfg.MaxFileSize {
		return nil, fmt.Errorf("%s is %d bytes, limit %d: %w",
			fileName, len(data), s.cfg.MaxFileSize, entity.ErrFileTooLarge)
	}

	opts, err := s.resolve(opts)
	if err != nil {
		return nil, err
	}

	rows, err := parseWorkbook(data)
	if err != nil {
		return nil, err
	}
	if len(rows) > s.cfg.MaxRows {
		return nil, fmt.Errorf("%s has %d rows, limit %d: %w",
			fileName, len(rows), s.cfg.MaxRows, entity.ErrTooManyRows)
	}

	batch := &entity.ImportBatch{
		FileName:          fileName,
		FileSize:          int64(len(data)),
		TotalRows:         len(rows),
		DuplicateStrategy: opts.DuplicateStrategy,
		ImportedBy:        opts.ImportedBy,
		ImportedAt:        time.Now(),
	}

	for attempt := 0; attempt < batchNoAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch.BatchNo = utils.NewBatchNo()
		batch.SuccessRows, batch.RepeatRows, batch.InvalidRows = 0, 0, 0
		batch.RowErrors = nil

		err = s.db.WithTransaction(func(tx *sql.Tx) error {
			return s.runImport(ctx, tx, rows, batch)
		})
		if err == nil {
			s.logger.Info("Import completed",
				zap.String("batch_no", batch.BatchNo),
				zap.String("file", fileName),
				zap.Int("total", batch.TotalRows),
				zap.Int("success", batch.SuccessRows),
				zap.Int("repeat", batch.RepeatRows),
				zap.Int("invalid", batch.InvalidRows))
			return batch, nil
		}
		if !repository.IsUniqueViolation(err) {
			s.logger.Error("Import failed",
				zap.String("batch_no", batch.BatchNo),
				zap.String("file", fileName),
				zap.Error(err))
			return nil, err
		}
		s.logger.Warn("Batch number collision, regenerating",
			zap.String("batch_no", batch.BatchNo))
	}
	return nil, fmt.Errorf("failed to import %s after %d attempts: %w", fileName, batchNoAttempts, err)
}

// runImport processes every parsed row inside the import transaction and
// finalizes the batch. The counters must cover every row exactly once.
func (s *Service) runImport(ctx context.Context, tx *sql.Tx, rows []sheetRow, batch *entity.ImportBatch) error {
	// in-batch dedup by the same (user, start, end) key used against the
	// store; the value is the id of the record the key first produced
	seen := make(map[string]int64)

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, verr := convertRow(row, s.cfg.StrictValidation)
		if verr != nil {
			batch.InvalidRows++
			batch.RowErrors = append(batch.RowErrors, verr.AsRowError())
			continue
		}
		rec.ImportBatchNo = batch.BatchNo

		key := fmt.Sprintf("%s|%s|%s", rec.UserName,
			rec.StartTime.Format(time.RFC3339), rec.EndTime.Format(time.RFC3339))

		if priorID, ok := seen[key]; ok {
			batch.RepeatRows++
			if batch.DuplicateStrategy == entity.DuplicateCover {
				if err := s.records.Replace(ctx, tx, priorID, rec); err != nil {
					return err
				}
			}
			continue
		}

		existing, err := s.records.FindByWindow(ctx, tx, rec.UserName, rec.StartTime, rec.EndTime)
		if err != nil {
			return err
		}
		if existing != nil {
			batch.RepeatRows++
			seen[key] = existing.ID
			if batch.DuplicateStrategy == entity.DuplicateCover {
				if err := s.records.Replace(ctx, tx, existing.ID, rec); err != nil {
					return err
				}
			}
			continue
		}

		if err := s.records.Insert(ctx, tx, rec); err != nil {
			return err
		}
		seen[key] = rec.ID
		batch.SuccessRows++
	}

	if batch.TotalRows != batch.SuccessRows+batch.RepeatRows+batch.InvalidRows {
		return &entity.ConsistencyError{
			Message: fmt.Sprintf("batch %s counters do not cover all rows: total=%d success=%d repeat=%d invalid=%d",
				batch.BatchNo, batch.TotalRows, batch.SuccessRows, batch.RepeatRows, batch.InvalidRows),
		}
	}

	return s.batches.Create(ctx, tx, batch)
}

// GetBatch returns one batch summary including its row errors.
func (s *Service) GetBatch(ctx context.Context, batchNo string) (*entity.ImportBatch, error) {
	return s.batches.GetByBatchNo(ctx, batchNo)
}

// ListBatches returns a page of batch summaries, newest first.
func (s *Service) ListBatches(ctx context.Context, page, size int) ([]*entity.ImportBatch, int, error) {
	return s.batches.List(ctx, page, size)
}

// ListBatchRecords returns a page of the live records a batch produced.
func (s *Service) ListBatchRecords(ctx context.Context, batchNo string, page, size int) ([]*entity.TimeReportRecord, int, error) {
	if _, err := s.batches.GetByBatchNo(ctx, batchNo); err != nil {
		return nil, 0, err
	}
	return s.records.ListByBatch(ctx, batchNo, page, size)
}

// RollbackBatch soft-deletes every live record of a batch and returns how
// many records were removed. The batch summary itself is kept for audit.
func (s *Service) RollbackBatch(ctx context.Context, batchNo string) (int64, error) {
	if _, err := s.batches.GetByBatchNo(ctx, batchNo); err != nil {
		return 0, err
	}

	var removed int64
	err := s.db.WithTransaction(func(tx *sql.Tx) error {
		var err error
		removed, err = s.records.SoftDeleteByBatch(ctx, tx, batchNo)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Batch rolled back",
		zap.String("batch_no", batchNo),
		zap.Int64("records_removed", removed))
	return removed, nil
}
