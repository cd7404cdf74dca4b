package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type sampleInputs struct {
	dir    string
	h5     string
	csv    string
	script string
}

func writeSample(t *testing.T, name string, script string) sampleInputs {
	t.Helper()
	dir := t.TempDir()

	s := sampleInputs{
		dir:    dir,
		h5:     filepath.Join(dir, name+".h5"),
		csv:    filepath.Join(dir, name+".csv"),
		script: filepath.Join(dir, "script.sh"),
	}

	require.NoError(t, os.WriteFile(s.h5, make([]byte, 2500), 0o644))
	require.NoError(t, os.WriteFile(s.csv, []byte("barcode,label\nAAAC,1\n"), 0o644))
	// Not executable on purpose; the runner sets the mode in the working directory.
	require.NoError(t, os.WriteFile(s.script, []byte(script), 0o644))

	return s
}

func (s sampleInputs) inputs(outputDir string) Inputs {
	return Inputs{H5Path: s.h5, CsvPath: s.csv, ScriptPath: s.script, OutputDir: outputDir}
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		_ = os.Chdir(prev)
	})
}
