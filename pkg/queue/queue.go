package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type QueueService interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

// QueueConfig contains the configuration for the queue
type QueueConfig struct {
	Workers    int           // number of workers
	RetryLimit int           // retries before a message moves to the dead letter list
	RetryDelay time.Duration // delay before a failed message is retried
	PollWait   time.Duration // BRPOP block time per poll
}

// Message is the envelope stored in Redis.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
}

// ParsePayload decodes a message payload into T.
func ParsePayload[T any](payload json.RawMessage) (*T, error) {
	var result T
	if len(payload) == 0 {
		return &result, nil
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &result, nil
}
