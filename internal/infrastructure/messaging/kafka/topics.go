package kafka

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/ryanyen2/Scholet/internal/domain/instruction"
	"github.com/ryanyen2/Scholet/internal/infrastructure/monitoring/logging"
	"github.com/ryanyen2/Scholet/pkg/errors"
)

const (
	TopicChatMessages     = "scholet.chat.messages"
	TopicSelectionChanged = "scholet.selection.changed"
	TopicDatasetUpdated   = "scholet.dataset.updated"
	TopicDeadLetter       = "scholet.dead_letter"
)

const (
	EventSelectionChanged = "selection.changed"
	EventDatasetUpdated   = "dataset.updated"
)

// EventEnvelope wraps every event Scholet publishes.
type EventEnvelope struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Source        string            `json:"source"`
	Timestamp     time.Time         `json:"timestamp"`
	SchemaVersion string            `json:"schema_version"`
	Payload       json.RawMessage   `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// SelectionChangedPayload reports the keys one applied message touched.
type SelectionChangedPayload struct {
	SessionID string   `json:"session_id"`
	MessageID int64    `json:"message_id"`
	Touched   []string `json:"touched"`
	Revision  uint64   `json:"revision"`
}

// DatasetUpdatedPayload announces a new dataset object. Version, when set,
// is the fingerprint of the previous layers to invalidate.
type DatasetUpdatedPayload struct {
	Source  string `json:"source" validate:"required,oneof=file minio"`
	Path    string `json:"path,omitempty"`
	Object  string `json:"object,omitempty"`
	Format  string `json:"format,omitempty" validate:"omitempty,oneof=auto csv json"`
	Version string `json:"version,omitempty"`
}

// ChatEnvelope is the record consumed from TopicChatMessages. It is not an
// EventEnvelope: chat front ends produce it directly.
type ChatEnvelope struct {
	SessionID string              `json:"session_id" validate:"required"`
	Message   instruction.Message `json:"message"`
}

var validate = validator.New()

func NewEventEnvelope(eventType, source string, payload interface{}) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal payload")
	}
	return &EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: "v1",
		Payload:       data,
	}, nil
}

func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return errors.New(errors.ErrCodeValidation, "event has no payload").WithDetail(e.EventType)
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode payload")
	}
	return nil
}

// ToMessage keys the record by key so events of one session stay ordered
// within a partition.
func (e *EventEnvelope) ToMessage(topic, key string) (*ProducerMessage, error) {
	val, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal envelope")
	}
	return &ProducerMessage{
		Topic: topic,
		Key:   []byte(key),
		Value: val,
		Headers: map[string]string{
			"event_type":     e.EventType,
			"source_service": e.Source,
			"schema_version": e.SchemaVersion,
		},
		Timestamp: e.Timestamp,
	}, nil
}

func MessageToEventEnvelope(msg *Message) (*EventEnvelope, error) {
	if len(msg.Value) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "empty message value")
	}
	var env EventEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal envelope")
	}
	return &env, nil
}

// DecodeChatEnvelope parses and validates a chat record.
func DecodeChatEnvelope(msg *Message) (ChatEnvelope, error) {
	var env ChatEnvelope
	if len(msg.Value) == 0 {
		return env, errors.New(errors.ErrCodeValidation, "empty message value")
	}
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return env, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal chat envelope")
	}
	if err := validate.Struct(env); err != nil {
		return env, errors.Wrap(err, errors.ErrCodeValidation, "invalid chat envelope")
	}
	return env, nil
}

// DecodeDatasetUpdated parses a dataset.updated event.
func DecodeDatasetUpdated(msg *Message) (DatasetUpdatedPayload, error) {
	var p DatasetUpdatedPayload
	env, err := MessageToEventEnvelope(msg)
	if err != nil {
		return p, err
	}
	if env.EventType != EventDatasetUpdated {
		return p, errors.New(errors.ErrCodeValidation, "unexpected event type").WithDetail(env.EventType)
	}
	if err := env.DecodePayload(&p); err != nil {
		return p, err
	}
	if err := validate.Struct(p); err != nil {
		return p, errors.Wrap(err, errors.ErrCodeValidation, "invalid dataset event")
	}
	return p, nil
}

// TopicConfig describes one topic to create.
type TopicConfig struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	RetentionMs       int64
	CleanupPolicy     string
}

// ConnInterface abstracts kafka.Conn for testing.
type ConnInterface interface {
	CreateTopics(topics ...kafka.TopicConfig) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	Close() error
}

// TopicManager creates Scholet's topics when they are missing.
type TopicManager struct {
	conn   ConnInterface
	logger logging.Logger
}

func NewTopicManager(brokers []string, logger logging.Logger) (*TopicManager, error) {
	if len(brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "brokers required")
	}
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to dial kafka")
	}
	return newTopicManager(conn, logger), nil
}

func newTopicManager(conn ConnInterface, logger logging.Logger) *TopicManager {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &TopicManager{conn: conn, logger: logger}
}

func (m *TopicManager) CreateTopic(ctx context.Context, cfg TopicConfig) error {
	if cfg.Name == "" {
		return errors.New(errors.ErrCodeValidation, "topic name required")
	}
	if cfg.NumPartitions <= 0 || cfg.ReplicationFactor <= 0 {
		return errors.New(errors.ErrCodeValidation, "partitions and replication factor must be positive").WithDetail(cfg.Name)
	}
	exists, err := m.TopicExists(ctx, cfg.Name)
	if err == nil && exists {
		return nil
	}

	kCfg := kafka.TopicConfig{
		Topic:             cfg.Name,
		NumPartitions:     cfg.NumPartitions,
		ReplicationFactor: cfg.ReplicationFactor,
	}
	if cfg.RetentionMs > 0 {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries, kafka.ConfigEntry{ConfigName: "retention.ms", ConfigValue: strconv.FormatInt(cfg.RetentionMs, 10)})
	}
	if cfg.CleanupPolicy != "" {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries, kafka.ConfigEntry{ConfigName: "cleanup.policy", ConfigValue: cfg.CleanupPolicy})
	}
	if err := m.conn.CreateTopics(kCfg); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to create topic").WithDetail(cfg.Name)
	}
	m.logger.Info("topic created", logging.String("topic", cfg.Name))
	return nil
}

func (m *TopicManager) TopicExists(ctx context.Context, name string) (bool, error) {
	partitions, err := m.conn.ReadPartitions(name)
	if err != nil {
		return false, err
	}
	return len(partitions) > 0, nil
}

func (m *TopicManager) EnsureTopics(ctx context.Context, topics []TopicConfig) error {
	for _, topic := range topics {
		if err := m.CreateTopic(ctx, topic); err != nil {
			return err
		}
	}
	return nil
}

func (m *TopicManager) Close() error {
	return m.conn.Close()
}

// DefaultTopics lists the topics Scholet reads and writes.
func DefaultTopics(replication int) []TopicConfig {
	if replication <= 0 {
		replication = 1
	}
	day := int64(24 * 3600 * 1000)
	return []TopicConfig{
		{Name: TopicChatMessages, NumPartitions: 6, ReplicationFactor: replication, RetentionMs: 7 * day},
		{Name: TopicSelectionChanged, NumPartitions: 6, ReplicationFactor: replication, RetentionMs: 3 * day},
		{Name: TopicDatasetUpdated, NumPartitions: 1, ReplicationFactor: replication, RetentionMs: 30 * day},
		{Name: TopicDeadLetter, NumPartitions: 1, ReplicationFactor: replication, RetentionMs: 30 * day},
	}
}
