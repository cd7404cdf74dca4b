//go:build integration
// +build integration

package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
)

func setupRabbitMQContainer(t *testing.T, ctx context.Context) string {
	rabbitmqContainer, err := rabbitmq.RunContainer(ctx,
		testcontainers.WithImage("rabbitmq:3.11-management"),
	)
	require.NoError(t, err, "failed to start rabbitmq container")
	t.Cleanup(func() {
		if err := rabbitmqContainer.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate rabbitmq container: %v", err)
		}
	})

	connStr, err := rabbitmqContainer.AmqpURL(ctx)
	require.NoError(t, err, "failed to get rabbitmq url")
	return connStr
}

func TestPublishConsumeRunTask(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	connStr := setupRabbitMQContainer(t, ctx)

	publisher, err := NewRabbitMQPublisher(connStr, DefaultRunQueue)
	require.NoError(t, err)
	defer publisher.Close()

	receiver, err := NewRabbitMQReceiver(connStr, DefaultRunQueue)
	require.NoError(t, err)
	defer receiver.Close()

	payload := RunTaskPayload{
		RunId:      uuid.New(),
		H5Path:     "/data/sample.h5",
		CsvPath:    "/data/sample.csv",
		ScriptPath: "/opt/script.sh",
		JobId:      12,
		SampleId:   34,
	}
	require.NoError(t, publisher.PublishRunTask(ctx, payload))

	select {
	case task := <-receiver.Tasks():
		assert.Equal(t, DefaultRunQueue, task.Type())

		var received RunTaskPayload
		require.NoError(t, json.Unmarshal(task.Payload(), &received))
		assert.Equal(t, payload, received)

		require.NoError(t, task.Ack())
	case <-ctx.Done():
		t.Fatal("timed out waiting for run task")
	}
}
