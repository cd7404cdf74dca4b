package migration_1

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RunTier is the first version of database.RunTier.
type RunTier struct {
	RunId     uuid.UUID `gorm:"type:uuid;primaryKey"`
	Tier      string    `gorm:"primaryKey"`
	FileCount int
}

func Migration(db *gorm.DB) error {
	if err := db.Migrator().CreateTable(&RunTier{}); err != nil {
		return fmt.Errorf("error creating run_tiers table: %w", err)
	}
	return nil
}

func Rollback(db *gorm.DB) error {
	if err := db.Migrator().DropTable(&RunTier{}); err != nil {
		return fmt.Errorf("error dropping run_tiers table: %w", err)
	}
	return nil
}
