package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"predictcr-runner/internal/core"
	"predictcr-runner/internal/database"
	"predictcr-runner/internal/messaging"
	"predictcr-runner/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const maxListLimit = 500

type RunsService struct {
	db        *gorm.DB
	publisher messaging.Publisher
}

// NewRunsService serves the run ledger. Submissions are only accepted when a
// publisher is provided.
func NewRunsService(db *gorm.DB, publisher messaging.Publisher) *RunsService {
	return &RunsService{db: db, publisher: publisher}
}

func (s *RunsService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", RestHandler(s.ListRuns))
		r.Post("/", RestHandler(s.SubmitRun))
		r.Get("/{run_id}", RestHandler(s.GetRun))
	})
}

func (s *RunsService) ListRuns(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.ListRunsParams](r)
	if err != nil {
		return nil, err
	}

	if params.Limit < 0 || params.Limit > maxListLimit {
		return nil, CodedErrorf(http.StatusBadRequest, "limit must be between 0 and %d", maxListLimit)
	}

	status := strings.ToUpper(params.Status)
	switch status {
	case "", database.RunQueued, database.RunRunning, database.RunCompleted, database.RunFailed, database.RunTimeout:
	default:
		return nil, CodedErrorf(http.StatusBadRequest, "invalid status '%s'", params.Status)
	}

	runs, err := database.ListRuns(r.Context(), s.db, status, params.Limit)
	if err != nil {
		slog.Error("error listing runs", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to list runs")
	}

	return convertRuns(runs), nil
}

func (s *RunsService) GetRun(r *http.Request) (any, error) {
	runId, err := URLParamUUID(r, "run_id")
	if err != nil {
		return nil, err
	}

	run, err := database.GetRun(r.Context(), s.db, runId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "run not found")
		}
		slog.Error("error getting run", "run_id", runId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to retrieve run")
	}

	return convertRun(run), nil
}

func (s *RunsService) SubmitRun(r *http.Request) (any, error) {
	if s.publisher == nil {
		return nil, CodedErrorf(http.StatusServiceUnavailable, "run submission is not enabled")
	}

	req, err := ParseRequest[api.SubmitRunRequest](r)
	if err != nil {
		return nil, err
	}

	if req.H5Path == "" || req.CsvPath == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "H5Path and CsvPath are required")
	}

	ctx := r.Context()

	run := &database.Run{
		Id:         uuid.New(),
		SampleName: core.SampleName(req.H5Path),
		JobId:      req.JobId,
		SampleId:   req.SampleId,
		H5Path:     req.H5Path,
		CsvPath:    req.CsvPath,
		ScriptPath: req.ScriptPath,
		OutputDir:  req.OutputDir,
		Status:     database.RunQueued,
	}

	if err := database.CreateRun(ctx, s.db, run); err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to create run entry")
	}

	payload := messaging.RunTaskPayload{
		RunId:      run.Id,
		H5Path:     req.H5Path,
		CsvPath:    req.CsvPath,
		ScriptPath: req.ScriptPath,
		OutputDir:  req.OutputDir,
		JobId:      req.JobId,
		SampleId:   req.SampleId,
	}

	if err := s.publisher.PublishRunTask(ctx, payload); err != nil {
		slog.Error("error publishing run task", "run_id", run.Id, "error", err)
		if err := database.FinishRun(ctx, s.db, run.Id, database.RunOutcome{Status: database.RunFailed, Error: "failed to queue run"}); err != nil {
			slog.Error("error marking run as failed", "run_id", run.Id, "error", err)
		}
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to queue run")
	}

	return api.SubmitRunResponse{RunId: run.Id}, nil
}
