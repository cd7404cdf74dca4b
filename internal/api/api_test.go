package api_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	backend "predictcr-runner/internal/api"
	"predictcr-runner/internal/database"
	"predictcr-runner/internal/messaging"
	"predictcr-runner/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func createDB(t *testing.T, create ...any) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, database.GetMigrator(db).Migrate())

	for _, c := range create {
		require.NoError(t, db.Create(c).Error)
	}

	return db
}

func newRouter(db *gorm.DB, publisher messaging.Publisher) chi.Router {
	service := backend.NewRunsService(db, publisher)
	router := chi.NewRouter()
	service.AddRoutes(router)
	return router
}

func get(t *testing.T, router chi.Router, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(t, newRouter(createDB(t), nil), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListRuns(t *testing.T) {
	now := time.Now().UTC()
	id1, id2 := uuid.New(), uuid.New()
	db := createDB(t,
		&database.Run{Id: id1, SampleName: "a", Status: database.RunCompleted, CreationTime: now, Stdout: "lots of output"},
		&database.Run{Id: id2, SampleName: "b", Status: database.RunFailed, CreationTime: now.Add(time.Minute)},
		&database.RunTier{RunId: id1, Tier: "user_results", FileCount: 4},
	)
	router := newRouter(db, nil)

	rec := get(t, router, "/runs")
	require.Equal(t, http.StatusOK, rec.Code)

	var runs []api.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 2)
	assert.Equal(t, id2, runs[0].Id)
	assert.Equal(t, id1, runs[1].Id)
	assert.Empty(t, runs[1].Stdout)
	assert.Equal(t, []api.RunTier{{Tier: "user_results", FileCount: 4}}, runs[1].Results)

	rec = get(t, router, "/runs?status=completed")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, id1, runs[0].Id)

	rec = get(t, router, "/runs?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	assert.Len(t, runs, 1)
}

func TestListRunsBadParams(t *testing.T) {
	router := newRouter(createDB(t), nil)

	assert.Equal(t, http.StatusBadRequest, get(t, router, "/runs?status=sleeping").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, router, "/runs?limit=-1").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, router, "/runs?limit=abc").Code)
}

func TestGetRun(t *testing.T) {
	runId := uuid.New()
	db := createDB(t,
		&database.Run{
			Id:             runId,
			SampleName:     "sample",
			Status:         database.RunFailed,
			ExitCode:       sql.NullInt64{Int64: 2, Valid: true},
			Stdout:         "out",
			Stderr:         "err",
			CreationTime:   time.Now().UTC(),
			CompletionTime: sql.NullTime{Time: time.Now().UTC(), Valid: true},
		},
	)
	router := newRouter(db, nil)

	rec := get(t, router, "/runs/"+runId.String())
	require.Equal(t, http.StatusOK, rec.Code)

	var run api.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, runId, run.Id)
	assert.Equal(t, database.RunFailed, run.Status)
	require.NotNil(t, run.ExitCode)
	assert.Equal(t, 2, *run.ExitCode)
	assert.Equal(t, "err", run.Stderr)
	assert.Nil(t, run.StartTime)
	assert.NotNil(t, run.CompletionTime)
	assert.Empty(t, run.Results)
}

func TestGetRunErrors(t *testing.T) {
	router := newRouter(createDB(t), nil)

	assert.Equal(t, http.StatusNotFound, get(t, router, "/runs/"+uuid.NewString()).Code)
	assert.Equal(t, http.StatusBadRequest, get(t, router, "/runs/not-a-uuid").Code)
}

func post(t *testing.T, router chi.Router, target string, body any) *httptest.ResponseRecorder {
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(data))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSubmitRun(t *testing.T) {
	db := createDB(t)
	queue := messaging.NewInMemoryQueue(messaging.DefaultRunQueue)
	router := newRouter(db, queue)

	rec := post(t, router, "/runs", api.SubmitRunRequest{H5Path: "/data/s1.h5", CsvPath: "/data/s1.csv", JobId: 3})
	require.Equal(t, http.StatusOK, rec.Code)

	var res api.SubmitRunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))

	run, err := database.GetRun(context.Background(), db, res.RunId)
	require.NoError(t, err)
	assert.Equal(t, database.RunQueued, run.Status)
	assert.Equal(t, "s1", run.SampleName)
	assert.Equal(t, 3, run.JobId)

	queue.Close()
	task := <-queue.Tasks()
	var payload messaging.RunTaskPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, res.RunId, payload.RunId)
	assert.Equal(t, "/data/s1.h5", payload.H5Path)
}

func TestSubmitRunValidation(t *testing.T) {
	queue := messaging.NewInMemoryQueue(messaging.DefaultRunQueue)

	assert.Equal(t, http.StatusBadRequest, post(t, newRouter(createDB(t), queue), "/runs", api.SubmitRunRequest{H5Path: "/data/s1.h5"}).Code)
	assert.Equal(t, http.StatusServiceUnavailable, post(t, newRouter(createDB(t), nil), "/runs", api.SubmitRunRequest{H5Path: "a", CsvPath: "b"}).Code)
}

type brokenPublisher struct{}

func (brokenPublisher) PublishRunTask(ctx context.Context, payload messaging.RunTaskPayload) error {
	return errors.New("broker down")
}

func (brokenPublisher) Close() {}

func TestSubmitRunPublishFailure(t *testing.T) {
	db := createDB(t)
	router := newRouter(db, brokenPublisher{})

	rec := post(t, router, "/runs", api.SubmitRunRequest{H5Path: "/data/s1.h5", CsvPath: "/data/s1.csv"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	runs, err := database.ListRuns(context.Background(), db, database.RunFailed, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "failed to queue run", runs[0].Error.String)
}
