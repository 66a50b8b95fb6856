package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"edu-payments-backend/internal/ledger"
	"edu-payments-backend/internal/models"
	"edu-payments-backend/internal/provider"
	"edu-payments-backend/internal/repository"
	service "edu-payments-backend/internal/services/reconciliation"
)

const dateLayout = "2006-01-02"

type ReconciliationHandler struct {
	engine  *service.Engine
	runLogs *repository.RunLogRepository
	log     *zap.Logger
}

func NewReconciliationHandler(engine *service.Engine, runLogs *repository.RunLogRepository, log *zap.Logger) *ReconciliationHandler {
	return &ReconciliationHandler{engine: engine, runLogs: runLogs, log: log}
}

type runRequest struct {
	FromDate string `json:"from_date" binding:"required"`
	ToDate   string `json:"to_date" binding:"required"`
	DryRun   bool   `json:"dry_run"`
	Mode     string `json:"mode"`
}

// Run triggers a provider-driven reconciliation run and returns its report.
func (h *ReconciliationHandler) Run(c *gin.Context) {
	var req runRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	period, err := parsePeriod(req.FromDate, req.ToDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mode := service.Mode(req.Mode)
	if req.Mode == "" {
		mode = service.ModeAuto
	}

	report, err := h.engine.Run(c.Request.Context(), service.RunParams{
		Period: period,
		DryRun: req.DryRun,
		Mode:   mode,
	})
	if err != nil {
		h.renderRunError(c, err)
		return
	}

	h.persistRunLog(c, report)
	c.JSON(http.StatusOK, gin.H{"report": report, "export": report.FlatExport()})
}

// Upload runs reconciliation against an uploaded ledger export instead of
// the live provider API.
func (h *ReconciliationHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	defer file.Close()

	period, err := parsePeriod(c.PostForm("from_date"), c.PostForm("to_date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dryRun := c.PostForm("dry_run") != "false"

	raw, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return
	}

	txs, err := ledger.Parse(raw, detectFormat(c.PostForm("format"), header.Filename))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.log.Info("ledger file ingested",
		zap.String("file", header.Filename),
		zap.Int("transactions", len(txs)))

	report, err := h.engine.RunFile(c.Request.Context(), service.RunParams{
		Period: period,
		DryRun: dryRun,
	}, txs)
	if err != nil {
		h.renderRunError(c, err)
		return
	}

	h.persistRunLog(c, report)
	c.JSON(http.StatusOK, gin.H{"report": report, "export": report.FlatExport()})
}

func (h *ReconciliationHandler) ListRuns(c *gin.Context) {
	logs, err := h.runLogs.List(c.Request.Context(), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": logs})
}

func (h *ReconciliationHandler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run ID"})
		return
	}
	runLog, err := h.runLogs.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": runLog})
}

// persistRunLog records the run for history screens. The report already went
// back to the caller; a logging failure must not fail the request.
func (h *ReconciliationHandler) persistRunLog(c *gin.Context, report *service.Report) {
	summary, err := json.Marshal(report)
	if err != nil {
		h.log.Error("marshal run summary", zap.Error(err))
		return
	}
	entry := &models.ReconciliationRunLog{
		ID:             uuid.New(),
		PeriodFrom:     report.Period.From,
		PeriodTo:       report.Period.To,
		DryRun:         report.DryRun,
		ModeRequested:  string(report.ModeRequested),
		ModeUsed:       string(report.ModeUsed),
		FallbackReason: report.FallbackReason,
		Inserted:       report.Inserted,
		Updated:        report.Updated,
		ErrorCount:     len(report.Errors),
		Summary:        datatypes.JSON(summary),
		StartedAt:      report.StartedAt,
		CompletedAt:    report.CompletedAt,
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.runLogs.Save(c.Request.Context(), entry); err != nil {
		h.log.Error("persist run log", zap.Error(err))
	}
}

func (h *ReconciliationHandler) renderRunError(c *gin.Context, err error) {
	var capErr *provider.CapabilityError
	switch {
	case errors.Is(err, ledger.ErrUnreadableInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &capErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func parsePeriod(from, to string) (ledger.Period, error) {
	fromDate, err := time.Parse(dateLayout, from)
	if err != nil {
		return ledger.Period{}, errors.New("invalid from_date, expected yyyy-mm-dd")
	}
	toDate, err := time.Parse(dateLayout, to)
	if err != nil {
		return ledger.Period{}, errors.New("invalid to_date, expected yyyy-mm-dd")
	}
	if toDate.Before(fromDate) {
		return ledger.Period{}, errors.New("to_date precedes from_date")
	}
	// Inclusive window: extend the end date to the last instant of the day.
	return ledger.Period{From: fromDate, To: toDate.Add(24*time.Hour - time.Second)}, nil
}

func detectFormat(declared, filename string) ledger.Format {
	switch strings.ToLower(declared) {
	case "csv":
		return ledger.FormatCSV
	case "xlsx":
		return ledger.FormatXLSX
	}
	if strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		return ledger.FormatXLSX
	}
	return ledger.FormatCSV
}
