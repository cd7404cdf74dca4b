//go:build integration

package integrationtests

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	backend "predictcr-runner/internal/api"
	"predictcr-runner/internal/core"
	"predictcr-runner/internal/database"
	"predictcr-runner/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresLedger(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	db, err := database.NewDatabase(setupPostgresContainer(t, ctx))
	require.NoError(t, err)

	runner := core.NewRunner(core.Options{
		TempRoot: t.TempDir(),
		Recorder: core.NewDatabaseRecorder(db),
	}, nil)

	s := writeSample(t, "pg_sample")
	runId := uuid.New()
	_, err = runner.Run(ctx, core.Inputs{
		H5Path:     s.h5,
		CsvPath:    s.csv,
		ScriptPath: s.script,
		OutputDir:  filepath.Join(t.TempDir(), "results"),
		RunId:      runId,
	})
	require.NoError(t, err)

	service := backend.NewRunsService(db, nil)
	router := chi.NewRouter()
	service.AddRoutes(router)

	var run api.Run
	require.NoError(t, httpRequest(router, http.MethodGet, fmt.Sprintf("/runs/%s", runId), nil, &run))

	assert.Equal(t, database.RunCompleted, run.Status)
	assert.Equal(t, "pg_sample", run.SampleName)
	require.NotNil(t, run.ExitCode)
	assert.Equal(t, 0, *run.ExitCode)
	assert.Contains(t, run.Stdout, `"sample_name": "pg_sample"`)
	assert.ElementsMatch(t, []api.RunTier{
		{Tier: "user_results", FileCount: 1},
		{Tier: "trusted_user_results", FileCount: 2},
		{Tier: "admin_results", FileCount: 1},
	}, run.Results)

	var runs []api.Run
	require.NoError(t, httpRequest(router, http.MethodGet, "/runs?status=COMPLETED", nil, &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, runId, runs[0].Id)
}
