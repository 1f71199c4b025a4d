package api

import (
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	"HistFill/internal/domain/models"
	drepo "HistFill/internal/domain/repository"
	"HistFill/internal/repository"
	"HistFill/internal/usecase"
	xhttp "HistFill/pkg/http"
	xlogger "HistFill/pkg/logger"
)

// IngestEchoHandler exposes the ingestion pipeline over HTTP.
type IngestEchoHandler struct {
	logger       *xlogger.Logger
	manager      *usecase.JobManager
	orchestrator *usecase.Orchestrator
	runner       *usecase.JobRunner
	coverage     *usecase.CoverageChecker
	tickers      drepo.TickerStore
	failed       drepo.FailedRegistry
}

func NewIngestEchoHandler(
	logger *xlogger.Logger,
	manager *usecase.JobManager,
	orchestrator *usecase.Orchestrator,
	runner *usecase.JobRunner,
	coverage *usecase.CoverageChecker,
	tickers drepo.TickerStore,
	failed drepo.FailedRegistry,
) *IngestEchoHandler {
	return &IngestEchoHandler{
		logger:       logger,
		manager:      manager,
		orchestrator: orchestrator,
		runner:       runner,
		coverage:     coverage,
		tickers:      tickers,
		failed:       failed,
	}
}

func (h *IngestEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/jobs", h.CreateJob)
	g.POST("/jobs/:id/run", h.RunJob)
	g.GET("/jobs/:id", h.GetJob)
	g.GET("/jobs/:id/stream", h.StreamJob)
	g.POST("/coverage", h.Coverage)
	g.GET("/tickers/:symbol", h.GetTicker)
	g.GET("/failed", h.ListFailed)
	g.DELETE("/failed/:symbol", h.ClearFailed)
}

func (h *IngestEchoHandler) CreateJob(c echo.Context) error {
	req := &models.CreateJobRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ctx := c.Request().Context()
	job, cov, err := h.manager.Create(ctx, req.Symbols, req.ChunkSize)
	if err != nil {
		h.logger.Error("create job", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	if req.AutoRun && !job.Status.Terminal() {
		if err := h.runner.Enqueue(ctx, job.ID, 0); err != nil {
			h.logger.Error("auto-run enqueue", xlogger.String("job_id", job.ID), xlogger.Error(err))
		}
	}

	return xhttp.CreatedResponse(c, &models.CreateJobResponse{
		JobID:         job.ID,
		TotalChunks:   job.TotalChunks,
		AlreadyCached: cov.Cached,
		Eliminated:    cov.Eliminated,
		ToProcess:     cov.Missing,
	})
}

func (h *IngestEchoHandler) RunJob(c echo.Context) error {
	req := &models.RunJobRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	jobID := c.Param("id")
	ctx := c.Request().Context()

	if req.Async {
		if err := h.runner.Enqueue(ctx, jobID, req.BudgetSeconds); err != nil {
			h.logger.Error("run enqueue", xlogger.String("job_id", jobID), xlogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
		job, err := h.manager.Get(ctx, jobID)
		if err != nil {
			return h.jobError(c, jobID, err)
		}
		return xhttp.SuccessResponse(c, &models.RunJobResponse{Progress: job.Progress()})
	}

	report, err := h.orchestrator.Run(ctx, jobID, time.Duration(req.BudgetSeconds)*time.Second)
	if err != nil {
		if errors.Is(err, usecase.ErrJobLocked) {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("job %s is already being processed", jobID))
		}
		return h.jobError(c, jobID, err)
	}

	return xhttp.SuccessResponse(c, &models.RunJobResponse{
		Completed:       report.Completed,
		ChunksProcessed: report.ChunksProcessed,
		Progress:        report.Job.Progress(),
	})
}

func (h *IngestEchoHandler) GetJob(c echo.Context) error {
	job, err := h.manager.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.jobError(c, c.Param("id"), err)
	}
	return xhttp.SuccessResponse(c, job)
}

func (h *IngestEchoHandler) Coverage(c echo.Context) error {
	req := &models.CoverageRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	cov, err := h.coverage.Check(c.Request().Context(), req.Symbols)
	if err != nil {
		h.logger.Error("coverage check", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, cov)
}

func (h *IngestEchoHandler) GetTicker(c echo.Context) error {
	symbol := c.Param("symbol")
	data, err := h.tickers.Get(c.Request().Context(), symbol)
	if err != nil {
		h.logger.Error("get ticker", xlogger.String("symbol", symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if data == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no data for %s", symbol))
	}
	return xhttp.SuccessResponse(c, data)
}

func (h *IngestEchoHandler) ListFailed(c echo.Context) error {
	registry, err := h.failed.All(c.Request().Context())
	if err != nil {
		h.logger.Error("list failed tickers", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, registry)
}

func (h *IngestEchoHandler) ClearFailed(c echo.Context) error {
	symbol := c.Param("symbol")
	if err := h.failed.Clear(c.Request().Context(), symbol); err != nil {
		h.logger.Error("clear failed ticker", xlogger.String("symbol", symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *IngestEchoHandler) jobError(c echo.Context, jobID string, err error) error {
	if errors.Is(err, repository.ErrJobNotFound) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("job %s not found or expired", jobID))
	}
	h.logger.Error("job handler", xlogger.String("job_id", jobID), xlogger.Error(err))
	return xhttp.AppErrorResponse(c, err)
}
