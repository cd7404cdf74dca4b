package migration_0

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
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
}

func Migration(db *gorm.DB) error {
	if err := db.AutoMigrate(&Run{}); err != nil {
		return fmt.Errorf("error creating runs table: %w", err)
	}
	return nil
}
