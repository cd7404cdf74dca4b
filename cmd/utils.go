package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"predictcr-runner/internal/config"
	"predictcr-runner/internal/core"
	"predictcr-runner/internal/database"
	"predictcr-runner/internal/storage"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func LoadEnvFile(configPath string) {
	if configPath == "" {
		slog.Debug("no env file specified, using os.Environ only")
		return
	}

	slog.Info("loading env from file", "path", configPath)
	if err := godotenv.Load(configPath); err != nil {
		log.Fatalf("error loading .env file '%s': %v", configPath, err)
	}
}

// SetupLogging sends log output to logFile as well as stderr. The returned
// function closes the file.
func SetupLogging(logFile string) func() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if logFile == "" {
		return func() {}
	}

	if err := os.MkdirAll(filepath.Dir(logFile), os.ModePerm); err != nil {
		log.Fatalf("error creating directory for log file: %v", err)
	}

	f, err := os.OpenFile(logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}

	log.SetOutput(io.MultiWriter(f, os.Stderr))

	return func() {
		log.SetOutput(os.Stderr)
		f.Close()
	}
}

// CreateMirrors returns the S3 destination results are copied to, if one is
// configured.
func CreateMirrors(ctx context.Context, cfg *config.Config) ([]core.Destination, error) {
	if !cfg.MirrorResults() {
		return nil, nil
	}

	store, err := storage.NewS3ObjectStore(storage.S3ClientConfig{
		Endpoint:        cfg.S3EndpointURL,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	if err := store.CreateBucket(ctx, cfg.ResultsBucket); err != nil {
		return nil, fmt.Errorf("failed to create results bucket %s: %w", cfg.ResultsBucket, err)
	}

	slog.Info("mirroring results", "location", store.Location(cfg.ResultsBucket, cfg.ResultsPrefix))

	return []core.Destination{{Store: store, Bucket: cfg.ResultsBucket, Prefix: cfg.ResultsPrefix}}, nil
}

// CreateLedger opens the run ledger when a database url is configured.
func CreateLedger(databaseURL string) (*gorm.DB, core.RunRecorder, error) {
	if databaseURL == "" {
		return nil, nil, nil
	}

	db, err := database.NewDatabase(databaseURL)
	if err != nil {
		return nil, nil, err
	}

	return db, core.NewDatabaseRecorder(db), nil
}

func CloseDatabase(db *gorm.DB) {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		slog.Error("error getting database handle", "error", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}
