package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultRunQueue = "local_run_queue"
	RetryDelay      = 5 * time.Second
	MaxConnectRetry = 5
)

type Task interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

// RunTaskPayload asks a worker to execute the analysis script on one sample.
// Paths must be readable from the worker's filesystem.
type RunTaskPayload struct {
	RunId      uuid.UUID
	H5Path     string
	CsvPath    string
	ScriptPath string
	OutputDir  string

	JobId    int
	SampleId int
}

type Publisher interface {
	PublishRunTask(ctx context.Context, payload RunTaskPayload) error

	Close()
}

type Reciever interface {
	Tasks() <-chan Task

	Close()
}
