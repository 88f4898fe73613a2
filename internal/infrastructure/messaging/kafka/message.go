// Package kafka carries chat messages into Scholet and publishes selection
// and dataset events out of it.
package kafka

import (
	"context"
	"time"
)

// Message is one consumed record.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// ProducerMessage is one record to publish. A zero Timestamp is replaced
// with the send time.
type ProducerMessage struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// MessageHandler processes one consumed record. A returned error triggers
// the consumer's retry policy.
type MessageHandler func(ctx context.Context, msg *Message) error

// Publisher is the write side used for dead letters and events.
type Publisher interface {
	Publish(ctx context.Context, msg *ProducerMessage) error
}
