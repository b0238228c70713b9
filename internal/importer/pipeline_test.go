package importer

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/openhours/workcheck/internal/config"
	"github.com/openhours/workcheck/internal/domain/entity"
	"github.com/openhours/workcheck/internal/repository"
	"github.com/openhours/workcheck/pkg/database"
	"github.com/openhours/workcheck/pkg/utils"
)

var sheetHeaders = []string{
	"Serial No", "User Name", "Department", "Project",
	"Start Time", "End Time", "Regular Hours", "Overtime Hours",
}

func setupDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "test.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	migrator := database.NewMigrator(db, zap.NewNop())
	require.NoError(t, migrator.RunMigrations("../../migrations"))
	return db
}

func newTestService(t *testing.T, db *database.DB, cfg config.ImportConfig) *Service {
	t.Helper()
	logger := zap.NewNop()
	return NewService(db,
		repository.NewRecordRepository(db.DB, logger),
		repository.NewBatchRepository(db.DB, logger),
		cfg, logger)
}

func testImportConfig() config.ImportConfig {
	return config.ImportConfig{
		MaxRows:           1000,
		MaxFileSize:       10 * 1024 * 1024,
		DuplicateStrategy: "skip",
	}
}

func buildWorkbook(t *testing.T, rows [][]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, h := range sheetHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue(sheet, cell, h))
	}
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func validRow(serial, user, date string) []any {
	return []any{serial, user, "Engineering", "Platform",
		date + " 09:00:00", date + " 17:00:00", 8.0, ""}
}

func TestImportFile_CountersAndRowErrors(t *testing.T) {
	db := setupDB(t)
	svc := newTestService(t, db, testImportConfig())

	// Row 2 has its end before its start and must be rejected without
	// aborting the surrounding rows.
	data := buildWorkbook(t, [][]any{
		validRow("A001", "alice", "2026-03-02"),
		{"A002", "alice", "Engineering", "Platform",
			"2026-03-03 18:00:00", "2026-03-03 09:00:00", 8.0, ""},
		validRow("A003", "alice", "2026-03-04"),
	})

	batch, err := svc.ImportFile(context.Background(), "report.xlsx", data, Options{ImportedBy: "tester"})
	require.NoError(t, err)

	assert.Equal(t, 3, batch.TotalRows)
	assert.Equal(t, 2, batch.SuccessRows)
	assert.Equal(t, 0, batch.RepeatRows)
	assert.Equal(t, 1, batch.InvalidRows)
	assert.Equal(t, batch.TotalRows, batch.SuccessRows+batch.RepeatRows+batch.InvalidRows)

	require.Len(t, batch.RowErrors, 1)
	assert.Equal(t, 2, batch.RowErrors[0].Row)
	assert.Equal(t, "endTime", batch.RowErrors[0].Field)

	assert.True(t, utils.ValidIdentifier(utils.BatchNoPrefix, batch.BatchNo))

	// The batch is persisted with the same counters.
	stored, err := svc.GetBatch(context.Background(), batch.BatchNo)
	require.NoError(t, err)
	assert.Equal(t, batch.SuccessRows, stored.SuccessRows)
	assert.Equal(t, batch.InvalidRows, stored.InvalidRows)
	require.Len(t, stored.RowErrors, 1)
	assert.Equal(t, 2, stored.RowErrors[0].Row)
}

func TestImportFile_RequiredFieldErrors(t *testing.T) {
	db := setupDB(t)
	svc := newTestService(t, db, testImportConfig())

	data := buildWorkbook(t, [][]any{
		{"", "alice", "Engineering", "", "2026-03-02 09:00:00", "2026-03-02 17:00:00", 8.0, ""},
		{"A002", "", "Engineering", "", "2026-03-02 09:00:00", "2026-03-02 17:00:00", 8.0, ""},
		{"A003", "bob", "Engineering", "", "not-a-time", "2026-03-02 17:00:00", 8.0, ""},
	})

	batch, err := svc.ImportFile(context.Background(), "report.xlsx", data, Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, batch.InvalidRows)
	require.Len(t, batch.RowErrors, 3)
	assert.Equal(t, "serialNo", batch.RowErrors[0].Field)
	assert.Equal(t, "userName", batch.RowErrors[1].Field)
	assert.Equal(t, "startTime", batch.RowErrors[2].Field)
}

func TestImportFile_SkipStrategyKeepsExisting(t *testing.T) {
	db := setupDB(t)
	svc := newTestService(t, db, testImportConfig())
	ctx := context.Background()

	first, err := svc.ImportFile(ctx, "report.xlsx", buildWorkbook(t, [][]any{
		validRow("A001", "alice", "2026-03-02"),
	}), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, first.SuccessRows)

	// Same window again: counted as repeat, prior record untouched.
	second, err := svc.ImportFile(ctx, "report.xlsx", buildWorkbook(t, [][]any{
		{"A001", "alice", "Sales", "Platform", "2026-03-02 09:00:00", "2026-03-02 17:00:00", 8.0, ""},
	}), Options{DuplicateStrategy: entity.DuplicateSkip})
	require.NoError(t, err)
	assert.Equal(t, 0, second.SuccessRows)
	assert.Equal(t, 1, second.RepeatRows)

	records, total, err := svc.ListBatchRecords(ctx, first.BatchNo, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Engineering", records[0].DeptName)
}

func TestImportFile_CoverStrategyReplaces(t *testing.T) {
	db := setupDB(t)
	svc := newTestService(t, db, testImportConfig())
	ctx := context.Background()

	first, err := svc.ImportFile(ctx, "report.xlsx", buildWorkbook(t, [][]any{
		validRow("A001", "alice", "2026-03-02"),
	}), Options{})
	require.NoError(t, err)

	second, err := svc.ImportFile(ctx, "report.xlsx", buildWorkbook(t, [][]any{
		{"A001", "alice", "Sales", "Platform", "2026-03-02 09:00:00", "2026-03-02 17:00:00", 8.0, ""},
	}), Options{DuplicateStrategy: entity.DuplicateCover})
	require.NoError(t, err)
	assert.Equal(t, 1, second.RepeatRows)

	// The record now belongs to the covering batch and carries its fields.
	_, total, err := svc.ListBatchRecords(ctx, first.BatchNo, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, total)

	records, total, err := svc.ListBatchRecords(ctx, second.BatchNo, 1, 10)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, "Sales", records[0].DeptName)
}

func TestImportFile_InBatchDuplicate(t *testing.T) {
	db := setupDB(t)
	svc := newTestService(t, db, testImportConfig())

	data := buildWorkbook(t, [][]any{
		validRow("A001", "alice", "2026-03-02"),
		validRow("A002", "alice", "2026-03-02"),
	})

	batch, err := svc.ImportFile(context.Background(), "report.xlsx", data, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, batch.SuccessRows)
	assert.Equal(t, 1, batch.RepeatRows)
	assert.Equal(t, 0, batch.InvalidRows)
}

func TestImportFile_Limits(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	data := buildWorkbook(t, [][]any{
		validRow("A001", "alice", "2026-03-02"),
		validRow("A002", "alice", "2026-03-03"),
	})

	t.Run("file too large", func(t *testing.T) {
		cfg := testImportConfig()
		cfg.MaxFileSize = 10
		svc := newTestService(t, db, cfg)

		_, err := svc.ImportFile(ctx, "report.xlsx", data, Options{})
		assert.ErrorIs(t, err, entity.ErrFileTooLarge)
	})

	t.Run("too many rows", func(t *testing.T) {
		cfg := testImportConfig()
		cfg.MaxRows = 1
		svc := newTestService(t, db, cfg)

		_, err := svc.ImportFile(ctx, "report.xlsx", data, Options{})
		assert.ErrorIs(t, err, entity.ErrTooManyRows)

		// A rejected upload leaves nothing behind.
		_, total, err := newTestService(t, db, testImportConfig()).ListBatches(ctx, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, 0, total)
	})
}

func TestImportFile_RejectsUnknownStrategy(t *testing.T) {
	db := setupDB(t)
	svc := newTestService(t, db, testImportConfig())

	data := buildWorkbook(t, [][]any{validRow("A001", "alice", "2026-03-02")})
	_, err := svc.ImportFile(context.Background(), "report.xlsx", data, Options{
		DuplicateStrategy: "merge",
	})
	assert.Error(t, err)
}

func TestImportFile_StrictBreakdownValidation(t *testing.T) {
	db := setupDB(t)

	// The category sum (6) disagrees with the 8 hour wall-clock span.
	data := buildWorkbook(t, [][]any{
		{"A001", "alice", "Engineering", "", "2026-03-02 09:00:00", "2026-03-02 17:00:00", 6.0, ""},
	})

	t.Run("strict rejects mismatch", func(t *testing.T) {
		cfg := testImportConfig()
		cfg.StrictValidation = true
		svc := newTestService(t, db, cfg)

		batch, err := svc.ImportFile(context.Background(), "report.xlsx", data, Options{})
		require.NoError(t, err)
		assert.Equal(t, 1, batch.InvalidRows)
		require.Len(t, batch.RowErrors, 1)
		assert.Equal(t, "hoursByCategory", batch.RowErrors[0].Field)
	})

	t.Run("lenient accepts mismatch", func(t *testing.T) {
		svc := newTestService(t, db, testImportConfig())

		batch, err := svc.ImportFile(context.Background(), "report.xlsx", data, Options{})
		require.NoError(t, err)
		assert.Equal(t, 1, batch.SuccessRows)
	})
}

func TestRollbackBatch(t *testing.T) {
	db := setupDB(t)
	svc := newTestService(t, db, testImportConfig())
	ctx := context.Background()

	batch, err := svc.ImportFile(ctx, "report.xlsx", buildWorkbook(t, [][]any{
		validRow("A001", "alice", "2026-03-02"),
		validRow("A002", "alice", "2026-03-03"),
	}), Options{})
	require.NoError(t, err)

	removed, err := svc.RollbackBatch(ctx, batch.BatchNo)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	// Records are soft deleted; the batch summary survives for audit.
	_, total, err := svc.ListBatchRecords(ctx, batch.BatchNo, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, total)

	stored, err := svc.GetBatch(ctx, batch.BatchNo)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.SuccessRows)

	// A rolled back window can be imported again.
	again, err := svc.ImportFile(ctx, "report.xlsx", buildWorkbook(t, [][]any{
		validRow("A001", "alice", "2026-03-02"),
	}), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, again.SuccessRows)
}

func TestRollbackBatch_UnknownBatch(t *testing.T) {
	db := setupDB(t)
	svc := newTestService(t, db, testImportConfig())

	_, err := svc.RollbackBatch(context.Background(), "IMP20260830120000_0000")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}
