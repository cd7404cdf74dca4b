package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"predictcr-runner/cmd"
	"predictcr-runner/internal/api"
	"predictcr-runner/internal/config"
	"predictcr-runner/internal/core"
	"predictcr-runner/internal/messaging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"gorm.io/gorm"
)

const defaultLedger = "runner-data/runs.db"

func createQueue(cfg *config.Config) (messaging.Publisher, messaging.Reciever) {
	if cfg.RabbitMQURL == "" {
		slog.Info("RABBITMQ_URL not set, runs can only be submitted through the api")
		queue := messaging.NewInMemoryQueue(cfg.QueueName)
		return queue, queue
	}

	publisher, err := messaging.NewRabbitMQPublisher(cfg.RabbitMQURL, cfg.QueueName)
	if err != nil {
		log.Fatalf("failed to create rabbitmq publisher: %v", err)
	}

	receiver, err := messaging.NewRabbitMQReceiver(cfg.RabbitMQURL, cfg.QueueName)
	if err != nil {
		log.Fatalf("failed to create rabbitmq receiver: %v", err)
	}

	return publisher, receiver
}

func createServer(db *gorm.DB, publisher messaging.Publisher, port int) *http.Server {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	runsHandler := api.NewRunsService(db, publisher)

	r.Route("/api/v1", func(r chi.Router) {
		runsHandler.AddRoutes(r)
	})

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
}

func main() {
	var envFile string
	flag.StringVar(&envFile, "env", "", "path to load env from")
	flag.Parse()

	cmd.LoadEnvFile(envFile)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	closeLog := cmd.SetupLogging(cfg.LogFile)
	defer closeLog()

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultLedger
	}

	slog.Info("starting worker", "queue", cfg.QueueName, "script", cfg.ScriptPath, "timeout", cfg.Timeout, "port", cfg.APIPort)

	db, recorder, err := cmd.CreateLedger(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to open run ledger: %v", err)
	}
	defer cmd.CloseDatabase(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mirrors, err := cmd.CreateMirrors(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to configure result mirroring: %v", err)
	}

	publisher, receiver := createQueue(cfg)
	defer publisher.Close()

	runner := core.NewRunner(core.Options{
		Timeout:  cfg.Timeout,
		TempRoot: cfg.TempRoot,
		Mirrors:  mirrors,
		Recorder: recorder,
	}, core.NewReporter(log.Writer()))

	worker := core.NewTaskProcessor(runner, receiver, recorder, cfg.ScriptPath)

	server := createServer(db, publisher, cfg.APIPort)

	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Start(ctx)
	}()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "port", cfg.APIPort)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("could not listen on %d: %v", cfg.APIPort, err)
	}

	slog.Info("shutting down worker")
	worker.Stop()
	cancel()
	<-done

	slog.Info("worker stopped")
}
