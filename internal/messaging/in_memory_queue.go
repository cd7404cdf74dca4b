package messaging

import (
	"context"
	"encoding/json"
	"sync"
)

type inMemoryTask struct {
	queue   string
	payload []byte
}

func (t *inMemoryTask) Type() string {
	return t.queue
}

func (t *inMemoryTask) Payload() []byte {
	return t.payload
}

func (t *inMemoryTask) Ack() error {
	return nil
}

func (t *inMemoryTask) Nack() error {
	return nil
}

func (t *inMemoryTask) Reject() error {
	return nil
}

// InMemoryQueue is both a Publisher and a Reciever for a single process.
type InMemoryQueue struct {
	queue string
	tasks chan Task
	once  sync.Once
}

func NewInMemoryQueue(queue string) *InMemoryQueue {
	return &InMemoryQueue{
		queue: queue,
		tasks: make(chan Task, 100),
	}
}

func (q *InMemoryQueue) publishTaskInternal(payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	q.tasks <- &inMemoryTask{queue: q.queue, payload: data}

	return nil
}

func (q *InMemoryQueue) PublishRunTask(ctx context.Context, payload RunTaskPayload) error {
	return q.publishTaskInternal(payload)
}

// PublishRaw enqueues an arbitrary body, used to exercise malformed messages.
func (q *InMemoryQueue) PublishRaw(body []byte) {
	q.tasks <- &inMemoryTask{queue: q.queue, payload: body}
}

func (q *InMemoryQueue) Tasks() <-chan Task {
	return q.tasks
}

func (q *InMemoryQueue) Close() {
	q.once.Do(func() {
		close(q.tasks)
	})
}
