package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const DefaultScriptPath = "runner/script/script.sh"

type Config struct {
	ScriptPath string        `env:"RUNNER_SCRIPT" envDefault:"runner/script/script.sh"`
	Timeout    time.Duration `env:"RUNNER_TIMEOUT" envDefault:"1h"`
	TempRoot   string        `env:"RUNNER_TMPDIR" envDefault:""`
	LogFile    string        `env:"RUNNER_LOG_FILE" envDefault:""`

	DatabaseURL string `env:"RUNNER_DATABASE_URL" envDefault:""`

	ResultsBucket     string `env:"RESULTS_S3_BUCKET" envDefault:""`
	ResultsPrefix     string `env:"RESULTS_S3_PREFIX" envDefault:""`
	S3EndpointURL     string `env:"S3_ENDPOINT_URL" envDefault:""`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID" envDefault:""`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" envDefault:""`
	S3Region          string `env:"AWS_REGION" envDefault:"us-east-1"`

	RabbitMQURL string `env:"RABBITMQ_URL" envDefault:""`
	QueueName   string `env:"RUNNER_QUEUE" envDefault:"local_run_queue"`
	APIPort     int    `env:"API_PORT" envDefault:"8001"`
}

func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("invalid RUNNER_TIMEOUT %v: must be positive", cfg.Timeout)
	}

	if strings.TrimSpace(cfg.QueueName) == "" {
		return nil, fmt.Errorf("RUNNER_QUEUE must not be empty")
	}

	if cfg.S3EndpointURL != "" && (cfg.S3AccessKeyID == "" || cfg.S3SecretAccessKey == "") {
		slog.Warn("S3_ENDPOINT_URL is set, but AWS_ACCESS_KEY_ID or AWS_SECRET_ACCESS_KEY are missing")
	}

	return &cfg, nil
}

// MirrorResults reports whether results should also be uploaded to S3.
func (c *Config) MirrorResults() bool {
	return c.ResultsBucket != ""
}
