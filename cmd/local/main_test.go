package main

import (
	"bytes"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"predictcr-runner/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs(t *testing.T) {
	for _, tc := range []struct {
		name     string
		args     []string
		expected cliArgs
	}{
		{
			name:     "positional only",
			args:     []string{"a.h5", "a.csv"},
			expected: cliArgs{h5Path: "a.h5", csvPath: "a.csv"},
		},
		{
			name:     "flags first",
			args:     []string{"-s", "run.sh", "-o", "out", "a.h5", "a.csv"},
			expected: cliArgs{h5Path: "a.h5", csvPath: "a.csv", scriptPath: "run.sh", outputDir: "out"},
		},
		{
			name:     "flags interleaved",
			args:     []string{"a.h5", "--script", "run.sh", "a.csv", "--output=out", "-env", ".env"},
			expected: cliArgs{h5Path: "a.h5", csvPath: "a.csv", scriptPath: "run.sh", outputDir: "out", envFile: ".env"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := parseArgs(tc.args, &bytes.Buffer{})
			require.NoError(t, err)
			assert.Equal(t, tc.expected, parsed)
		})
	}
}

func TestParseArgsUsageErrors(t *testing.T) {
	for _, args := range [][]string{
		{},
		{"a.h5"},
		{"a.h5", "a.csv", "extra"},
		{"a.h5", "a.csv", "-s"},
		{"-unknown", "a.h5", "a.csv"},
	} {
		stderr := &bytes.Buffer{}
		_, err := parseArgs(args, stderr)
		assert.Error(t, err, args)
		assert.Contains(t, stderr.String(), "usage: local", args)
	}
}

func TestParseArgsHelp(t *testing.T) {
	_, err := parseArgs([]string{"-h"}, &bytes.Buffer{})
	assert.True(t, errors.Is(err, flag.ErrHelp))
}

type runEnv struct {
	dir      string
	h5       string
	csv      string
	script   string
	ledger   string
	logFile  string
	tempRoot string
}

func setupRunEnv(t *testing.T) runEnv {
	dir := t.TempDir()
	e := runEnv{
		dir:      dir,
		h5:       filepath.Join(dir, "sample.h5"),
		csv:      filepath.Join(dir, "sample.csv"),
		script:   filepath.Join(dir, "analysis.sh"),
		ledger:   filepath.Join(dir, "ledger", "runs.db"),
		logFile:  filepath.Join(dir, "logs", "runner.log"),
		tempRoot: t.TempDir(),
	}

	require.NoError(t, os.WriteFile(e.h5, []byte("h5"), 0o644))
	require.NoError(t, os.WriteFile(e.csv, []byte("barcode\n"), 0o644))
	require.NoError(t, os.WriteFile(e.script, []byte("#!/bin/sh\necho report > user_results/report.txt\n"), 0o644))

	t.Setenv("RUNNER_DATABASE_URL", e.ledger)
	t.Setenv("RUNNER_LOG_FILE", e.logFile)
	t.Setenv("RUNNER_TMPDIR", e.tempRoot)
	t.Setenv("RESULTS_S3_BUCKET", "")

	return e
}

func TestRunMissingInputLeavesNothingBehind(t *testing.T) {
	e := setupRunEnv(t)
	output := filepath.Join(e.dir, "results")

	stdout := &bytes.Buffer{}
	code := run([]string{"-s", e.script, "-o", output, e.h5 + ".missing", e.csv}, stdout, &bytes.Buffer{})

	assert.Equal(t, 1, code)
	assert.Contains(t, stdout.String(), "❌ H5 file not found: ")

	for _, p := range []string{e.ledger, filepath.Dir(e.ledger), e.logFile, filepath.Dir(e.logFile), output} {
		_, err := os.Stat(p)
		assert.True(t, os.IsNotExist(err), p)
	}
}

func TestRunRecordsLedgerAndLog(t *testing.T) {
	e := setupRunEnv(t)
	output := filepath.Join(e.dir, "results")

	stdout := &bytes.Buffer{}
	code := run([]string{e.h5, e.csv, "--script", e.script, "--output", output}, stdout, &bytes.Buffer{})

	assert.Equal(t, 0, code)
	assert.FileExists(t, e.ledger)
	assert.FileExists(t, e.logFile)
	assert.FileExists(t, filepath.Join(output, "user_results", "report.txt"))
}

func TestScriptNextTo(t *testing.T) {
	exeDir := t.TempDir()

	// Not shipped next to the program: stays relative to the working directory.
	assert.Equal(t, config.DefaultScriptPath, scriptNextTo(exeDir, config.DefaultScriptPath))

	shipped := filepath.Join(exeDir, config.DefaultScriptPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(shipped), 0o755))
	require.NoError(t, os.WriteFile(shipped, []byte("#!/bin/sh\n"), 0o755))

	assert.Equal(t, shipped, scriptNextTo(exeDir, config.DefaultScriptPath))
}

func TestDefaultScriptKeepsConfiguredPath(t *testing.T) {
	assert.Equal(t, "/opt/analysis/run.sh", defaultScript("/opt/analysis/run.sh"))
	assert.Equal(t, "custom.sh", defaultScript("custom.sh"))
}
