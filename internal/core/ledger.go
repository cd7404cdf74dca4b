package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"predictcr-runner/internal/database"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DatabaseRecorder records runs in the run ledger.
type DatabaseRecorder struct {
	db *gorm.DB
}

func NewDatabaseRecorder(db *gorm.DB) *DatabaseRecorder {
	return &DatabaseRecorder{db: db}
}

func (d *DatabaseRecorder) RunStarted(ctx context.Context, run *RunResult) error {
	descriptor, err := json.Marshal(run.Job)
	if err != nil {
		return fmt.Errorf("error encoding job descriptor: %w", err)
	}

	record := &database.Run{
		Id:         run.RunId,
		SampleName: run.Job.SampleName,
		JobId:      run.Job.JobId,
		SampleId:   run.Job.SampleId,
		LocalRun:   run.Job.LocalRun,
		H5Path:     run.Inputs.H5Path,
		CsvPath:    run.Inputs.CsvPath,
		ScriptPath: run.Inputs.ScriptPath,
		OutputDir:  run.OutputDir,
		Status:     database.RunRunning,
		Descriptor: datatypes.JSON(descriptor),
	}

	// CreateRun loads an already queued row into its argument, which must not
	// replace the values this run actually uses.
	existing := *record
	if err := database.CreateRun(ctx, d.db, &existing); err != nil {
		return err
	}
	return database.MarkRunStarted(ctx, d.db, record)
}

func (d *DatabaseRecorder) RunFinished(ctx context.Context, run *RunResult, runErr error) error {
	outcome := database.RunOutcome{
		Stdout:    run.Stdout,
		Stderr:    run.Stderr,
		OutputDir: run.OutputDir,
	}

	switch {
	case errors.Is(runErr, ErrTimeout):
		outcome.Status = database.RunTimeout
		outcome.Error = runErr.Error()
	case runErr != nil:
		outcome.Status = database.RunFailed
		outcome.Error = runErr.Error()
	default:
		exitCode := run.ExitCode
		outcome.ExitCode = &exitCode
		if run.Succeeded() {
			outcome.Status = database.RunCompleted
		} else {
			outcome.Status = database.RunFailed
		}
	}

	for _, tier := range run.Collected {
		outcome.Tiers = append(outcome.Tiers, database.RunTier{Tier: string(tier.Tier), FileCount: tier.Files})
	}

	return database.FinishRun(ctx, d.db, run.RunId, outcome)
}
