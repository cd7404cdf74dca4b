package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const DefaultListLimit = 50

// CreateRun inserts run unless a record with the same id already exists, which
// happens when a queued run was registered at submission time.
func CreateRun(ctx context.Context, txn *gorm.DB, run *Run) error {
	if run.CreationTime.IsZero() {
		run.CreationTime = time.Now().UTC()
	}

	if err := txn.WithContext(ctx).Where(Run{Id: run.Id}).Attrs(*run).FirstOrCreate(run).Error; err != nil {
		slog.Error("error creating run", "run_id", run.Id, "error", err)
		return fmt.Errorf("error creating run %v: %w", run.Id, err)
	}
	return nil
}

func UpdateRunStatus(ctx context.Context, txn *gorm.DB, runId uuid.UUID, status string) error {
	updates := map[string]any{"status": status}
	switch status {
	case RunRunning:
		updates["start_time"] = time.Now().UTC()
	case RunCompleted, RunFailed, RunTimeout:
		updates["completion_time"] = time.Now().UTC()
	}

	if err := txn.WithContext(ctx).Model(&Run{Id: runId}).Updates(updates).Error; err != nil {
		slog.Error("error updating run status", "run_id", runId, "status", status, "error", err)
		return fmt.Errorf("error updating run %v status: %w", runId, err)
	}
	return nil
}

// MarkRunStarted moves a run to RUNNING and records how it is being executed.
func MarkRunStarted(ctx context.Context, txn *gorm.DB, run *Run) error {
	updates := map[string]any{
		"status":      RunRunning,
		"start_time":  time.Now().UTC(),
		"script_path": run.ScriptPath,
		"local_run":   run.LocalRun,
		"descriptor":  run.Descriptor,
	}
	if run.OutputDir != "" {
		updates["output_dir"] = run.OutputDir
	}

	if err := txn.WithContext(ctx).Model(&Run{Id: run.Id}).Updates(updates).Error; err != nil {
		slog.Error("error marking run as started", "run_id", run.Id, "error", err)
		return fmt.Errorf("error marking run %v as started: %w", run.Id, err)
	}
	return nil
}

type RunOutcome struct {
	Status    string
	ExitCode  *int
	Error     string
	Stdout    string
	Stderr    string
	OutputDir string
	Tiers     []RunTier
}

func FinishRun(ctx context.Context, db *gorm.DB, runId uuid.UUID, outcome RunOutcome) error {
	return db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		updates := map[string]any{
			"status":          outcome.Status,
			"stdout":          outcome.Stdout,
			"stderr":          outcome.Stderr,
			"completion_time": sql.NullTime{Time: time.Now().UTC(), Valid: true},
		}
		if outcome.ExitCode != nil {
			updates["exit_code"] = sql.NullInt64{Int64: int64(*outcome.ExitCode), Valid: true}
		}
		if outcome.Error != "" {
			updates["error"] = sql.NullString{String: outcome.Error, Valid: true}
		}
		if outcome.OutputDir != "" {
			updates["output_dir"] = outcome.OutputDir
		}

		if err := txn.Model(&Run{Id: runId}).Updates(updates).Error; err != nil {
			return fmt.Errorf("error updating run %v: %w", runId, err)
		}

		if err := txn.Where("run_id = ?", runId).Delete(&RunTier{}).Error; err != nil {
			return fmt.Errorf("error clearing tiers for run %v: %w", runId, err)
		}

		for _, tier := range outcome.Tiers {
			tier.RunId = runId
			if err := txn.Create(&tier).Error; err != nil {
				return fmt.Errorf("error saving tier %s for run %v: %w", tier.Tier, runId, err)
			}
		}

		return nil
	})
}

func GetRun(ctx context.Context, db *gorm.DB, runId uuid.UUID) (Run, error) {
	var run Run
	if err := db.WithContext(ctx).Preload("Results").First(&run, "id = ?", runId).Error; err != nil {
		return Run{}, err
	}
	return run, nil
}

func ListRuns(ctx context.Context, db *gorm.DB, status string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := db.WithContext(ctx).Preload("Results").Order("creation_time DESC").Limit(limit)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var runs []Run
	if err := query.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("error listing runs: %w", err)
	}
	return runs, nil
}
