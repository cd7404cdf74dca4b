package api

import (
	"database/sql"
	"time"

	"predictcr-runner/internal/database"
	"predictcr-runner/pkg/api"
)

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

func convertRun(r database.Run) api.Run {
	run := api.Run{
		Id:             r.Id,
		SampleName:     r.SampleName,
		JobId:          r.JobId,
		SampleId:       r.SampleId,
		LocalRun:       r.LocalRun,
		H5Path:         r.H5Path,
		CsvPath:        r.CsvPath,
		ScriptPath:     r.ScriptPath,
		OutputDir:      r.OutputDir,
		Status:         r.Status,
		Error:          r.Error.String,
		Stdout:         r.Stdout,
		Stderr:         r.Stderr,
		CreationTime:   r.CreationTime,
		StartTime:      nullTime(r.StartTime),
		CompletionTime: nullTime(r.CompletionTime),
		Results:        make([]api.RunTier, 0, len(r.Results)),
	}

	if r.ExitCode.Valid {
		code := int(r.ExitCode.Int64)
		run.ExitCode = &code
	}

	for _, tier := range r.Results {
		run.Results = append(run.Results, api.RunTier{Tier: tier.Tier, FileCount: tier.FileCount})
	}

	return run
}

// convertRuns leaves out captured output to keep listings small.
func convertRuns(rs []database.Run) []api.Run {
	runs := make([]api.Run, 0, len(rs))
	for _, r := range rs {
		run := convertRun(r)
		run.Stdout, run.Stderr = "", ""
		runs = append(runs, run)
	}
	return runs
}
