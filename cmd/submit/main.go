package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"predictcr-runner/cmd"
	"predictcr-runner/internal/config"
	"predictcr-runner/internal/core"
	"predictcr-runner/internal/database"
	"predictcr-runner/internal/messaging"

	"github.com/google/uuid"
)

func absPath(p string) string {
	if p == "" {
		return ""
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		log.Fatalf("error resolving path %s: %v", p, err)
	}
	return abs
}

func main() {
	var (
		envFile    string
		scriptPath string
		outputDir  string
		jobId      int
		sampleId   int
	)
	flag.StringVar(&envFile, "env", "", "path to load env from")
	flag.StringVar(&scriptPath, "script", "", "analysis script, as seen by the worker")
	flag.StringVar(&outputDir, "output", "", "output directory, as seen by the worker")
	flag.IntVar(&jobId, "job-id", 0, "job id passed to the script")
	flag.IntVar(&sampleId, "sample-id", 0, "sample id passed to the script")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: submit [flags] <h5_file> <csv_file>")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}

	cmd.LoadEnvFile(envFile)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	if cfg.RabbitMQURL == "" {
		log.Fatalf("RABBITMQ_URL must be set to submit runs")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	payload := messaging.RunTaskPayload{
		RunId:      uuid.New(),
		H5Path:     absPath(flag.Arg(0)),
		CsvPath:    absPath(flag.Arg(1)),
		ScriptPath: absPath(scriptPath),
		OutputDir:  absPath(outputDir),
		JobId:      jobId,
		SampleId:   sampleId,
	}

	db, _, err := cmd.CreateLedger(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to open run ledger: %v", err)
	}
	defer cmd.CloseDatabase(db)

	if db != nil {
		run := &database.Run{
			Id:         payload.RunId,
			SampleName: core.SampleName(payload.H5Path),
			JobId:      jobId,
			SampleId:   sampleId,
			H5Path:     payload.H5Path,
			CsvPath:    payload.CsvPath,
			ScriptPath: payload.ScriptPath,
			OutputDir:  payload.OutputDir,
			Status:     database.RunQueued,
		}
		if err := database.CreateRun(ctx, db, run); err != nil {
			log.Fatalf("failed to register run: %v", err)
		}
	}

	publisher, err := messaging.NewRabbitMQPublisher(cfg.RabbitMQURL, cfg.QueueName)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer publisher.Close()

	if err := publisher.PublishRunTask(ctx, payload); err != nil {
		if db != nil {
			if err := database.FinishRun(ctx, db, payload.RunId, database.RunOutcome{Status: database.RunFailed, Error: "failed to queue run"}); err != nil {
				slog.Error("error marking run as failed", "run_id", payload.RunId, "error", err)
			}
		}
		log.Fatalf("failed to publish run: %v", err)
	}

	slog.Info("run submitted", "run_id", payload.RunId, "queue", cfg.QueueName)
	fmt.Println(payload.RunId)
}
