package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"predictcr-runner/internal/messaging"

	"github.com/google/uuid"
)

// TaskProcessor executes queued runs one at a time.
type TaskProcessor struct {
	runner   *Runner
	reciever messaging.Reciever
	recorder RunRecorder

	defaultScript string
}

func NewTaskProcessor(runner *Runner, reciever messaging.Reciever, recorder RunRecorder, defaultScript string) *TaskProcessor {
	return &TaskProcessor{
		runner:        runner,
		reciever:      reciever,
		recorder:      recorder,
		defaultScript: defaultScript,
	}
}

// Start consumes tasks until ctx is cancelled or the reciever is closed.
func (proc *TaskProcessor) Start(ctx context.Context) {
	slog.Info("starting task processor")

	tasks := proc.reciever.Tasks()
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-tasks:
			if !ok {
				return
			}
			proc.ProcessTask(ctx, task)
		}
	}
}

func (proc *TaskProcessor) Stop() {
	slog.Info("stopping task processor")

	proc.reciever.Close()
}

func (proc *TaskProcessor) ProcessTask(ctx context.Context, task messaging.Task) {
	var payload messaging.RunTaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		slog.Error("error unmarshalling run task", "queue", task.Type(), "error", err)
		if err := task.Reject(); err != nil { // discard malformed message
			slog.Error("error rejecting message from queue", "error", err)
		}
		return
	}

	res, err := proc.processRunTask(ctx, payload)

	switch {
	case errors.Is(err, ErrInputNotFound) || errors.Is(err, ErrScriptNotFound):
		slog.Error("run task references missing files", "run_id", payload.RunId, "error", err)
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting message from queue", "error", err)
		}
	case err != nil:
		slog.Error("error processing run task", "run_id", payload.RunId, "error", err)
		if err := task.Nack(); err != nil {
			slog.Error("error reporting processing failure on message from queue", "error", err)
		}
	default:
		slog.Info("successfully processed run task", "run_id", res.RunId, "exit_code", res.ExitCode, "output_dir", res.OutputDir)
		if err := task.Ack(); err != nil {
			slog.Error("error acknowledging message from queue", "error", err)
		}
	}
}

func (proc *TaskProcessor) processRunTask(ctx context.Context, payload messaging.RunTaskPayload) (*RunResult, error) {
	if payload.H5Path == "" || payload.CsvPath == "" {
		return nil, fmt.Errorf("%w: task is missing input paths", ErrInputNotFound)
	}

	scriptPath := payload.ScriptPath
	if scriptPath == "" {
		scriptPath = proc.defaultScript
	}

	job := JobDescriptor{
		JobId:      payload.JobId,
		SampleId:   payload.SampleId,
		SampleName: SampleName(payload.H5Path),
		LocalRun:   false,
	}

	in := Inputs{
		H5Path:     payload.H5Path,
		CsvPath:    payload.CsvPath,
		ScriptPath: scriptPath,
		OutputDir:  payload.OutputDir,
		Job:        &job,
		RunId:      payload.RunId,
	}

	res, err := proc.runner.Run(ctx, in)
	if err != nil && proc.recorder != nil && payload.RunId != uuid.Nil && (errors.Is(err, ErrInputNotFound) || errors.Is(err, ErrScriptNotFound)) {
		// The run never started, but it may have been registered when it was queued.
		failed := &RunResult{RunId: payload.RunId, Job: job, Inputs: in}
		if rerr := proc.recorder.RunFinished(ctx, failed, err); rerr != nil {
			slog.Warn("failed to record rejected run", "run_id", payload.RunId, "error", rerr)
		}
	}
	return res, err
}
