package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func installScript(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ScriptName), []byte(body), 0o755))
	return dir
}

func TestExecuteScriptCapturesOutput(t *testing.T) {
	dir := installScript(t, `#!/bin/sh
echo "hello from $(basename "$PWD")"
echo "warning" >&2
`)

	res, err := ExecuteScript(context.Background(), dir, time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "hello from "+filepath.Base(dir)+"\n", res.Stdout)
	assert.Equal(t, "warning\n", res.Stderr)
	assert.Greater(t, res.Duration, time.Duration(0))
}

func TestExecuteScriptExitCode(t *testing.T) {
	dir := installScript(t, "#!/bin/sh\nexit 42\n")

	res, err := ExecuteScript(context.Background(), dir, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 42, res.ExitCode)
}

func TestExecuteScriptTimeoutKillsChildren(t *testing.T) {
	dir := installScript(t, `#!/bin/sh
sleep 30 &
sleep 30
`)

	start := time.Now()
	res, err := ExecuteScript(context.Background(), dir, 200*time.Millisecond)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestExecuteScriptLaunchError(t *testing.T) {
	dir := t.TempDir()

	res, err := ExecuteScript(context.Background(), dir, time.Minute)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrLaunch)
}

func TestExecuteScriptCancelledContext(t *testing.T) {
	dir := installScript(t, "#!/bin/sh\nsleep 30\n")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := ExecuteScript(ctx, dir, time.Minute)
	assert.ErrorIs(t, err, ErrLaunch)
	assert.NotErrorIs(t, err, ErrTimeout)
}
