package api

import (
	"time"

	"github.com/google/uuid"
)

type RunTier struct {
	Tier      string
	FileCount int
}

type Run struct {
	Id         uuid.UUID
	SampleName string
	JobId      int
	SampleId   int
	LocalRun   bool

	H5Path     string
	CsvPath    string
	ScriptPath string
	OutputDir  string

	Status   string
	ExitCode *int
	Error    string

	Stdout string
	Stderr string

	CreationTime   time.Time
	StartTime      *time.Time
	CompletionTime *time.Time

	Results []RunTier
}

type ListRunsParams struct {
	Status string `schema:"status"`
	Limit  int    `schema:"limit"`
}

type SubmitRunRequest struct {
	H5Path     string
	CsvPath    string
	ScriptPath string
	OutputDir  string

	JobId    int
	SampleId int
}

type SubmitRunResponse struct {
	RunId uuid.UUID
}
