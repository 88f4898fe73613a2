package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanyen2/Scholet/pkg/errors"
)

type fakeWriter struct {
	written []kafka.Message
	err     error
	closed  bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, ProducerConfig{Brokers: []string{"b:9092"}}, nil)

	err := p.Publish(context.Background(), &ProducerMessage{
		Topic:   TopicSelectionChanged,
		Key:     []byte("s-1"),
		Value:   []byte(`{}`),
		Headers: map[string]string{"event_type": EventSelectionChanged},
	})
	require.NoError(t, err)
	require.Len(t, w.written, 1)
	assert.Equal(t, "s-1", string(w.written[0].Key))
	assert.False(t, w.written[0].Time.IsZero())
	assert.Equal(t, "event_type", w.written[0].Headers[0].Key)

	sent, failed := p.Stats()
	assert.Equal(t, int64(1), sent)
	assert.Equal(t, int64(0), failed)
}

func TestProducer_PublishValidation(t *testing.T) {
	p := newProducer(&fakeWriter{}, ProducerConfig{Brokers: []string{"b:9092"}, MaxMessageBytes: 4}, nil)
	ctx := context.Background()

	assert.True(t, errors.IsCode(p.Publish(ctx, &ProducerMessage{Value: []byte("x")}), errors.ErrCodeValidation))
	assert.True(t, errors.IsCode(p.Publish(ctx, &ProducerMessage{Topic: "t"}), errors.ErrCodeValidation))
	assert.True(t, errors.IsCode(p.Publish(ctx, &ProducerMessage{Topic: "t", Value: []byte("too long")}), errors.ErrCodeValidation))
}

func TestProducer_WriteFailure(t *testing.T) {
	p := newProducer(&fakeWriter{err: fmt.Errorf("broker down")}, ProducerConfig{Brokers: []string{"b:9092"}}, nil)

	err := p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("v")})
	assert.True(t, errors.IsCode(err, errors.ErrCodeExternalService))
	_, failed := p.Stats()
	assert.Equal(t, int64(1), failed)
}

func TestProducer_PublishEvent(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, ProducerConfig{Brokers: []string{"b:9092"}}, nil)

	payload := SelectionChangedPayload{SessionID: "s-1", MessageID: 7, Touched: []string{"p1"}, Revision: 3}
	require.NoError(t, p.PublishEvent(context.Background(), TopicSelectionChanged, EventSelectionChanged, "s-1", payload))
	require.Len(t, w.written, 1)

	var env EventEnvelope
	require.NoError(t, json.Unmarshal(w.written[0].Value, &env))
	assert.Equal(t, EventSelectionChanged, env.EventType)
	assert.NotEmpty(t, env.EventID)

	var got SelectionChangedPayload
	require.NoError(t, env.DecodePayload(&got))
	assert.Equal(t, payload, got)
}

func TestProducer_Close(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, ProducerConfig{Brokers: []string{"b:9092"}}, nil)
	require.NoError(t, p.Close())
	assert.NoError(t, p.Close())
	assert.True(t, w.closed)
	assert.Equal(t, ErrProducerClosed, p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("v")}))
}

func TestValidateProducerConfig(t *testing.T) {
	assert.Error(t, ValidateProducerConfig(ProducerConfig{}))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"b"}, MaxRetries: -1}))
	assert.NoError(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"b"}}))
}
