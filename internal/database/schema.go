package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	RunQueued    string = "QUEUED"
	RunRunning   string = "RUNNING"
	RunCompleted string = "COMPLETED"
	RunFailed    string = "FAILED"
	RunTimeout   string = "TIMEOUT"
)

type Run struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	SampleName string `gorm:"not null"`
	JobId      int
	SampleId   int
	LocalRun   bool

	H5Path     string
	CsvPath    string
	ScriptPath string
	OutputDir  string

	Status   string `gorm:"size:20;not null;index"`
	ExitCode sql.NullInt64
	Error    sql.NullString
	Stdout   string
	Stderr   string

	Descriptor datatypes.JSON

	CreationTime   time.Time
	StartTime      sql.NullTime
	CompletionTime sql.NullTime

	Results []RunTier `gorm:"foreignKey:RunId;constraint:OnDelete:CASCADE"`
}

// RunTier records one result folder collected for a run.
type RunTier struct {
	RunId     uuid.UUID `gorm:"type:uuid;primaryKey"`
	Tier      string    `gorm:"primaryKey"`
	FileCount int
}
