package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openhours/workcheck/internal/calendar"
	"github.com/openhours/workcheck/internal/checker"
	"github.com/openhours/workcheck/internal/config"
	"github.com/openhours/workcheck/internal/domain/entity"
	"github.com/openhours/workcheck/internal/importer"
	"github.com/openhours/workcheck/internal/repository"
)

const dateLayout = "2006-01-02"

// Handlers contains all HTTP request handlers
type Handlers struct {
	imports    *importer.Service
	integrity  *checker.IntegrityChecker
	compliance *checker.ComplianceChecker
	checkRuns  *repository.CheckRunRepository
	calendar   *calendar.Service
	importCfg  config.ImportConfig
	checkCfg   config.CheckConfig
	logger     *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	imports *importer.Service,
	integrity *checker.IntegrityChecker,
	compliance *checker.ComplianceChecker,
	checkRuns *repository.CheckRunRepository,
	calendarService *calendar.Service,
	importCfg config.ImportConfig,
	checkCfg config.CheckConfig,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		imports:    imports,
		integrity:  integrity,
		compliance: compliance,
		checkRuns:  checkRuns,
		calendar:   calendarService,
		importCfg:  importCfg,
		checkCfg:   checkCfg,
		logger:     logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

// respondError maps service errors to status codes. Unrecognized errors are
// reported as internal without leaking their detail.
func (h *Handlers) respondError(c *gin.Context, err error) {
	var syncErr *entity.CalendarSyncError
	var consistencyErr *entity.ConsistencyError

	switch {
	case errors.Is(err, entity.ErrNotFound):
		c.JSON(http.StatusNotFound, Response{Success: false, Error: err.Error()})
	case errors.Is(err, entity.ErrDateOccupied):
		c.JSON(http.StatusConflict, Response{Success: false, Error: err.Error()})
	case errors.Is(err, entity.ErrFileTooLarge),
		errors.Is(err, entity.ErrTooManyRows),
		errors.Is(err, entity.ErrInvalidRange):
		badRequest(c, err.Error())
	case errors.As(err, &syncErr):
		c.JSON(http.StatusBadGateway, Response{Success: false, Error: err.Error()})
	case errors.As(err, &consistencyErr):
		h.logger.Error("Consistency violation surfaced to client", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: err.Error()})
	default:
		h.logger.Error("Request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal error"})
	}
}

func pagination(c *gin.Context) (page, size int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ = strconv.Atoi(c.DefaultQuery("size", "20"))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	return page, size
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	ok(c, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GetConfig handles GET /api/config. It exposes the effective import limits
// and check thresholds so clients can surface defaults before submitting.
func (h *Handlers) GetConfig(c *gin.Context) {
	ok(c, gin.H{
		"import": gin.H{
			"maxRows":           h.importCfg.MaxRows,
			"maxFileSize":       h.importCfg.MaxFileSize,
			"duplicateStrategy": h.importCfg.DuplicateStrategy,
			"strictValidation":  h.importCfg.StrictValidation,
		},
		"check": gin.H{
			"standardHours":      h.checkCfg.StandardHours,
			"minHours":           h.checkCfg.MinHours,
			"maxOvertime":        h.checkCfg.MaxOvertime,
			"maxMonthlyOvertime": h.checkCfg.MaxMonthlyOvertime,
			"overtimeCategory":   h.checkCfg.OvertimeCategory,
			"maxRangeDays":       h.checkCfg.MaxRangeDays,
		},
	})
}

// ImportFile handles POST /api/imports
func (h *Handlers) ImportFile(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		h.respondError(c, err)
		return
	}

	opts := importer.Options{
		DuplicateStrategy: entity.DuplicateStrategy(c.PostForm("duplicateStrategy")),
		ImportedBy:        c.PostForm("importedBy"),
	}
	if opts.DuplicateStrategy != "" && !opts.DuplicateStrategy.Valid() {
		badRequest(c, "duplicateStrategy must be \"skip\" or \"cover\"")
		return
	}

	batch, err := h.imports.ImportFile(c.Request.Context(), fileHeader.Filename, data, opts)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, batch)
}

// ListBatches handles GET /api/imports
func (h *Handlers) ListBatches(c *gin.Context) {
	page, size := pagination(c)
	batches, total, err := h.imports.ListBatches(c.Request.Context(), page, size)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, gin.H{"items": batches, "total": total, "page": page, "size": size})
}

// GetBatch handles GET /api/imports/:batchNo
func (h *Handlers) GetBatch(c *gin.Context) {
	batch, err := h.imports.GetBatch(c.Request.Context(), c.Param("batchNo"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, batch)
}

// ListBatchRecords handles GET /api/imports/:batchNo/records
func (h *Handlers) ListBatchRecords(c *gin.Context) {
	page, size := pagination(c)
	records, total, err := h.imports.ListBatchRecords(c.Request.Context(), c.Param("batchNo"), page, size)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, gin.H{"items": records, "total": total, "page": page, "size": size})
}

// RollbackBatch handles DELETE /api/imports/:batchNo
func (h *Handlers) RollbackBatch(c *gin.Context) {
	removed, err := h.imports.RollbackBatch(c.Request.Context(), c.Param("batchNo"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, gin.H{"batchNo": c.Param("batchNo"), "recordsRemoved": removed})
}

// CheckRequest is the body of both check invocations. Threshold overrides
// apply to compliance checks only.
type CheckRequest struct {
	StartDate string `json:"startDate" binding:"required"`
	EndDate   string `json:"endDate" binding:"required"`
	DeptName  string `json:"deptName"`
	UserName  string `json:"userName"`
	CheckUser string `json:"checkUser"`

	StandardHours float64 `json:"standardHours"`
	MinHours      float64 `json:"minHours"`
	MaxOvertime   float64 `json:"maxOvertime"`
}

func (r *CheckRequest) filters() (entity.CheckFilters, error) {
	start, err := time.Parse(dateLayout, r.StartDate)
	if err != nil {
		return entity.CheckFilters{}, errors.New("startDate must be YYYY-MM-DD")
	}
	end, err := time.Parse(dateLayout, r.EndDate)
	if err != nil {
		return entity.CheckFilters{}, errors.New("endDate must be YYYY-MM-DD")
	}
	return entity.CheckFilters{
		StartDate: start,
		EndDate:   end,
		DeptName:  r.DeptName,
		UserName:  r.UserName,
	}, nil
}

// RunIntegrityCheck handles POST /api/checks/integrity
func (h *Handlers) RunIntegrityCheck(c *gin.Context) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "startDate and endDate are required")
		return
	}
	filters, err := req.filters()
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.integrity.Run(c.Request.Context(), filters, entity.TriggerManual, req.CheckUser)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, result)
}

// RunComplianceCheck handles POST /api/checks/compliance
func (h *Handlers) RunComplianceCheck(c *gin.Context) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "startDate and endDate are required")
		return
	}
	filters, err := req.filters()
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	thresholds := checker.Thresholds{
		StandardHours: req.StandardHours,
		MinHours:      req.MinHours,
		MaxOvertime:   req.MaxOvertime,
	}
	result, err := h.compliance.Run(c.Request.Context(), filters, thresholds, entity.TriggerManual, req.CheckUser)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, result)
}

// ListChecks handles GET /api/checks
func (h *Handlers) ListChecks(c *gin.Context) {
	page, size := pagination(c)
	q := repository.ListQuery{
		CheckType: entity.CheckType(c.Query("checkType")),
		CheckUser: c.Query("checkUser"),
		StartDate: c.Query("startDate"),
		EndDate:   c.Query("endDate"),
	}
	if (q.StartDate == "") != (q.EndDate == "") {
		badRequest(c, "startDate and endDate must be supplied together")
		return
	}

	results, total, err := h.checkRuns.List(c.Request.Context(), q, page, size)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, gin.H{"items": results, "total": total, "page": page, "size": size})
}

// GetCheck handles GET /api/checks/:checkNo
func (h *Handlers) GetCheck(c *gin.Context) {
	result, err := h.checkRuns.Get(c.Request.Context(), c.Param("checkNo"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, result)
}

// HolidayRequest is the body for creating a manual calendar entry.
type HolidayRequest struct {
	Date         string `json:"date" binding:"required"`
	Label        string `json:"label"`
	Compensatory bool   `json:"compensatory"`
	CreatedBy    string `json:"createdBy"`
}

// AddHoliday handles POST /api/holidays
func (h *Handlers) AddHoliday(c *gin.Context) {
	var req HolidayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "date is required")
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		badRequest(c, "date must be YYYY-MM-DD")
		return
	}

	day, err := h.calendar.AddHoliday(c.Request.Context(), date, req.Label, req.Compensatory, req.CreatedBy)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, day)
}

// ListHolidays handles GET /api/holidays
func (h *Handlers) ListHolidays(c *gin.Context) {
	page, size := pagination(c)
	year, _ := strconv.Atoi(c.Query("year"))

	days, total, err := h.calendar.ListHolidays(c.Request.Context(), year, page, size)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, gin.H{"items": days, "total": total, "page": page, "size": size})
}

// DeleteHoliday handles DELETE /api/holidays/:id
func (h *Handlers) DeleteHoliday(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid holiday id")
		return
	}
	if err := h.calendar.DeleteHoliday(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, gin.H{"deleted": id})
}

// YearRequest is the body for year-scoped calendar operations.
type YearRequest struct {
	Year      int    `json:"year" binding:"required"`
	CreatedBy string `json:"createdBy"`
}

// GenerateWeekends handles POST /api/holidays/generate-weekends
func (h *Handlers) GenerateWeekends(c *gin.Context) {
	var req YearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "year is required")
		return
	}

	created, err := h.calendar.GenerateWeekends(c.Request.Context(), req.Year, req.CreatedBy)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, gin.H{"year": req.Year, "created": created})
}

// SyncHolidays handles POST /api/holidays/sync
func (h *Handlers) SyncHolidays(c *gin.Context) {
	var req YearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "year is required")
		return
	}

	synced, err := h.calendar.SyncHolidays(c.Request.Context(), req.Year, req.CreatedBy)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, gin.H{"year": req.Year, "synced": synced})
}

// ClassifyDate handles GET /api/calendar/classify
func (h *Handlers) ClassifyDate(c *gin.Context) {
	date, err := time.Parse(dateLayout, c.Query("date"))
	if err != nil {
		badRequest(c, "date must be YYYY-MM-DD")
		return
	}

	day, err := h.calendar.Classify(c.Request.Context(), date)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, day)
}

// CalculateWorkdays handles GET /api/calendar/workdays
func (h *Handlers) CalculateWorkdays(c *gin.Context) {
	start, err := time.Parse(dateLayout, c.Query("start"))
	if err != nil {
		badRequest(c, "start must be YYYY-MM-DD")
		return
	}
	end, err := time.Parse(dateLayout, c.Query("end"))
	if err != nil {
		badRequest(c, "end must be YYYY-MM-DD")
		return
	}

	stats, err := h.calendar.CalculateWorkdays(c.Request.Context(), start, end)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, stats)
}
