package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"predictcr-runner/internal/storage"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
)

const (
	bytesPerMB = 1e6
	bytesPerKB = 1e3
)

type Inputs struct {
	H5Path     string
	CsvPath    string
	ScriptPath string
	// OutputDir defaults to results_<sample> in the current directory.
	OutputDir string
	// Job overrides the local descriptor derived from H5Path.
	Job *JobDescriptor
	// RunId is generated when nil.
	RunId uuid.UUID
}

// Destination is an additional place results are mirrored to after they have
// been written to the output directory.
type Destination struct {
	Store  storage.ObjectStore
	Bucket string
	Prefix string
}

type Options struct {
	Timeout      time.Duration
	TempRoot     string
	ShowProgress bool
	Mirrors      []Destination
	Recorder     RunRecorder
}

type CollectedTier struct {
	Tier  ResultTier
	Files int
}

type RunResult struct {
	RunId     uuid.UUID
	Job       JobDescriptor
	Inputs    Inputs
	OutputDir string
	ExitCode  int
	Stdout    string
	Stderr    string
	Duration  time.Duration
	Collected []CollectedTier
}

func (r *RunResult) Succeeded() bool {
	return r.ExitCode == 0
}

// RunRecorder persists run state. Implementations must tolerate being called
// for runs that fail before the script starts.
type RunRecorder interface {
	RunStarted(ctx context.Context, run *RunResult) error

	RunFinished(ctx context.Context, run *RunResult, runErr error) error
}

type Runner struct {
	opts   Options
	report *Reporter
}

func NewRunner(opts Options, report *Reporter) *Runner {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if report == nil {
		report = NewReporter(nil)
	}
	return &Runner{opts: opts, report: report}
}

// ExitCode maps the outcome of Run to the process exit status.
func ExitCode(res *RunResult, err error) int {
	if err != nil || res == nil || !res.Succeeded() {
		return 1
	}
	return 0
}

type inputCheck struct {
	label string
	path  string
	err   error
}

// missingInput returns the first input that is not a regular file.
func missingInput(in Inputs) (inputCheck, bool) {
	checks := []inputCheck{
		{"H5 file", in.H5Path, ErrInputNotFound},
		{"CSV file", in.CsvPath, ErrInputNotFound},
		{"Script", in.ScriptPath, ErrScriptNotFound},
	}

	for _, c := range checks {
		info, err := os.Stat(c.path)
		if err != nil || !info.Mode().IsRegular() {
			return c, true
		}
	}
	return inputCheck{}, false
}

// ValidateInputs checks the inputs without reporting anything, so callers can
// skip run setup for a run that cannot start.
func ValidateInputs(in Inputs) error {
	if c, missing := missingInput(in); missing {
		return fmt.Errorf("%w: %s", c.err, c.path)
	}
	return nil
}

func (r *Runner) validate(in Inputs) error {
	if c, missing := missingInput(in); missing {
		r.report.Fail("%s not found: %s", c.label, c.path)
		return fmt.Errorf("%w: %s", c.err, c.path)
	}
	return nil
}

// Run stages the inputs, executes the script and collects its results. Results
// are collected whenever the script terminates on its own, whatever its exit
// status. The returned error is non-nil only for fatal conditions.
func (r *Runner) Run(ctx context.Context, in Inputs) (*RunResult, error) {
	r.report.Banner("predicTCR Local Runner")

	if err := r.validate(in); err != nil {
		return nil, err
	}

	r.report.Printf("\n📁 Input files:")
	r.report.Printf("   H5:  %s", in.H5Path)
	r.report.Printf("   CSV: %s", in.CsvPath)
	r.report.Printf("   Script: %s", in.ScriptPath)

	job := NewLocalJob(in.H5Path)
	if in.Job != nil {
		job = *in.Job
		if job.SampleName == "" {
			job.SampleName = SampleName(in.H5Path)
		}
	}

	if in.RunId == uuid.Nil {
		in.RunId = uuid.New()
	}

	result := &RunResult{RunId: in.RunId, Job: job, Inputs: in, OutputDir: in.OutputDir}

	if r.opts.Recorder != nil {
		if err := r.opts.Recorder.RunStarted(ctx, result); err != nil {
			slog.Warn("failed to record run start", "run_id", result.RunId, "error", err)
		}
	}

	err := r.run(ctx, in, result)

	if r.opts.Recorder != nil {
		if rerr := r.opts.Recorder.RunFinished(ctx, result, err); rerr != nil {
			slog.Warn("failed to record run completion", "run_id", result.RunId, "error", rerr)
		}
	}

	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Runner) run(ctx context.Context, in Inputs, result *RunResult) error {
	workdir, err := NewWorkdir(r.opts.TempRoot)
	if err != nil {
		r.report.Fail("Error running script: %v", err)
		return fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	defer workdir.Remove()

	r.report.Printf("\n📂 Working directory: %s", workdir.Path)
	slog.Info("starting run", "run_id", result.RunId, "sample", result.Job.SampleName, "workdir", workdir.Path)

	if err := r.prepare(workdir, in, result.Job); err != nil {
		r.report.Fail("Error running script: %v", err)
		return fmt.Errorf("%w: %w", ErrLaunch, err)
	}

	r.report.Step(3, "Running analysis script...")
	res, err := ExecuteScript(ctx, workdir.Path, r.opts.Timeout)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			r.report.Printf("\n❌ Script timed out after %s", formatTimeout(r.opts.Timeout))
		} else {
			r.report.Printf("\n❌ Error running script: %v", err)
		}
		return err
	}

	result.ExitCode = res.ExitCode
	result.Stdout = res.Stdout
	result.Stderr = res.Stderr
	result.Duration = res.Duration

	r.report.ScriptOutput(res.Stdout, res.Stderr)
	if res.ExitCode != 0 {
		r.report.Printf("\n❌ Script failed with exit code %d", res.ExitCode)
	} else {
		r.report.Printf("\n✅ Script completed successfully")
	}

	if err := r.collect(ctx, workdir, result); err != nil {
		r.report.Fail("Error collecting results: %v", err)
		return err
	}

	r.report.Printf("")
	r.report.Rule()
	r.report.Printf("✅ Done!")
	r.report.Rule()

	return nil
}

func (r *Runner) prepare(workdir *Workdir, in Inputs, job JobDescriptor) error {
	r.report.Step(1, "Copying input files...")

	h5Size, err := workdir.Stage(InputH5Name, in.H5Path, r.progress(in.H5Path, InputH5Name))
	if err != nil {
		return err
	}
	csvSize, err := workdir.Stage(InputCsvName, in.CsvPath, r.progress(in.CsvPath, InputCsvName))
	if err != nil {
		return err
	}
	r.report.Ok("Copied %s (%.2f MB)", InputH5Name, float64(h5Size)/bytesPerMB)
	r.report.Ok("Copied %s (%.2f KB)", InputCsvName, float64(csvSize)/bytesPerKB)

	r.report.Step(2, "Creating result folders...")
	if err := workdir.CreateResultFolders(); err != nil {
		return err
	}
	for _, tier := range ResultTiers {
		r.report.Ok("Created %s/", tier)
	}

	if err := workdir.WriteJob(job); err != nil {
		return err
	}
	r.report.Ok("Created %s", JobInfoName)

	return workdir.InstallScript(in.ScriptPath)
}

func (r *Runner) progress(src, name string) io.Writer {
	if !r.opts.ShowProgress {
		return nil
	}

	info, err := os.Stat(src)
	if err != nil {
		return nil
	}

	return progressbar.NewOptions64(info.Size(),
		progressbar.OptionSetWriter(r.report.Writer()),
		progressbar.OptionSetDescription("   copying "+name),
		progressbar.OptionShowBytes(true),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *Runner) collect(ctx context.Context, workdir *Workdir, result *RunResult) error {
	r.report.Step(4, "Collecting results...")

	if result.OutputDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to determine current directory: %w", err)
		}
		result.OutputDir = DefaultOutputDir(cwd, result.Inputs.H5Path)
	}

	output, err := storage.NewLocalObjectStore(result.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	result.OutputDir = output.BaseDir()

	for _, tier := range ResultTiers {
		hasResults, err := workdir.HasResults(tier)
		if err != nil {
			return err
		}
		if !hasResults {
			r.report.Warn("%s/ (empty)", tier)
			continue
		}

		if err := output.UploadDir(ctx, "", string(tier), workdir.ResultDir(tier)); err != nil {
			return fmt.Errorf("failed to copy %s: %w", tier, err)
		}

		count, err := countEntries(output.Location("", string(tier)))
		if err != nil {
			return err
		}
		result.Collected = append(result.Collected, CollectedTier{Tier: tier, Files: count})
		r.report.Ok("%s/ (%d files)", tier, count)

		r.mirror(ctx, workdir, result.Job.SampleName, tier)
	}

	r.report.Printf("\n📁 Results saved to: %s", result.OutputDir)
	return nil
}

// mirror uploads a tier to every configured destination. The output directory
// stays authoritative, so failures only produce warnings.
func (r *Runner) mirror(ctx context.Context, workdir *Workdir, sample string, tier ResultTier) {
	for _, dest := range r.opts.Mirrors {
		prefix := path.Join(dest.Prefix, sample, string(tier))
		if err := dest.Store.UploadDir(ctx, dest.Bucket, prefix, workdir.ResultDir(tier)); err != nil {
			slog.Warn("failed to mirror results", "tier", tier, "destination", dest.Store.Location(dest.Bucket, prefix), "error", err)
			r.report.Warn("%s/ not mirrored to %s: %v", tier, dest.Store.Location(dest.Bucket, prefix), err)
			continue
		}
		r.report.Ok("%s/ mirrored to %s", tier, dest.Store.Location(dest.Bucket, prefix))
	}
}

func countEntries(dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != dir {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count entries in %s: %w", dir, err)
	}
	return count, nil
}

func formatTimeout(d time.Duration) string {
	if d == time.Hour {
		return "1 hour"
	}
	return d.String()
}
