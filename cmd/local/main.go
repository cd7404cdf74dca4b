package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"predictcr-runner/cmd"
	"predictcr-runner/internal/config"
	"predictcr-runner/internal/core"

	"golang.org/x/term"
)

const usage = `usage: local [flags] <h5_file> <csv_file>

Runs the predicTCR analysis script on one sample.

flags:
  -s, -script path   analysis script (default: $RUNNER_SCRIPT, or %s
                     next to this program or in the working directory)
  -o, -output dir    output directory (default: ./results_<sample>)
  -env path          load environment variables from this file
`

type cliArgs struct {
	h5Path     string
	csvPath    string
	scriptPath string
	outputDir  string
	envFile    string
}

var errUsage = errors.New("invalid usage")

// parseArgs accepts flags before, between and after the two positional paths.
func parseArgs(args []string, stderr io.Writer) (cliArgs, error) {
	var parsed cliArgs

	fs := flag.NewFlagSet("local", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, usage, config.DefaultScriptPath)
	}
	fs.StringVar(&parsed.scriptPath, "s", "", "analysis script")
	fs.StringVar(&parsed.scriptPath, "script", "", "analysis script")
	fs.StringVar(&parsed.outputDir, "o", "", "output directory")
	fs.StringVar(&parsed.outputDir, "output", "", "output directory")
	fs.StringVar(&parsed.envFile, "env", "", "path to load env from")

	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return cliArgs{}, err
		}
		if fs.NArg() == 0 {
			break
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}

	if len(positional) != 2 {
		fs.Usage()
		return cliArgs{}, fmt.Errorf("%w: expected 2 positional arguments, got %d", errUsage, len(positional))
	}

	parsed.h5Path = positional[0]
	parsed.csvPath = positional[1]

	return parsed, nil
}

func absPath(p string) string {
	if p == "" {
		return ""
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		log.Fatalf("error resolving path %s: %v", p, err)
	}
	return abs
}

// defaultScript resolves the built-in default script next to the program,
// the way it is shipped, and falls back to the working directory.
func defaultScript(configured string) string {
	if configured != config.DefaultScriptPath {
		return configured
	}
	exe, err := os.Executable()
	if err != nil {
		slog.Debug("unable to locate executable", "error", err)
		return configured
	}
	return scriptNextTo(filepath.Dir(exe), configured)
}

func scriptNextTo(dir, script string) string {
	candidate := filepath.Join(dir, script)
	if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
		return candidate
	}
	return script
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func run(argv []string, stdout, stderr io.Writer) int {
	args, err := parseArgs(argv, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		return 1
	}

	cmd.LoadEnvFile(args.envFile)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	if args.scriptPath == "" {
		args.scriptPath = defaultScript(cfg.ScriptPath)
	}

	inputs := core.Inputs{
		H5Path:     absPath(args.h5Path),
		CsvPath:    absPath(args.csvPath),
		ScriptPath: absPath(args.scriptPath),
		OutputDir:  absPath(args.outputDir),
	}

	report := core.NewReporter(stdout)

	// A run that cannot start leaves nothing behind: no log file, no ledger.
	if err := core.ValidateInputs(inputs); err != nil {
		res, err := core.NewRunner(core.Options{}, report).Run(context.Background(), inputs)
		return core.ExitCode(res, err)
	}

	closeLog := cmd.SetupLogging(cfg.LogFile)
	defer closeLog()
	if cfg.LogFile == "" {
		// Keep the console report readable.
		slog.SetLogLoggerLevel(slog.LevelWarn)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mirrors, err := cmd.CreateMirrors(ctx, cfg)
	if err != nil {
		slog.Warn("results will not be mirrored", "error", err)
	}

	db, recorder, err := cmd.CreateLedger(cfg.DatabaseURL)
	if err != nil {
		slog.Warn("run will not be recorded", "error", err)
	}
	defer cmd.CloseDatabase(db)

	runner := core.NewRunner(core.Options{
		Timeout:      cfg.Timeout,
		TempRoot:     cfg.TempRoot,
		ShowProgress: isTerminal(stdout),
		Mirrors:      mirrors,
		Recorder:     recorder,
	}, report)

	res, err := runner.Run(ctx, inputs)
	if err != nil {
		slog.Error("run failed", "error", err)
	}

	return core.ExitCode(res, err)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
