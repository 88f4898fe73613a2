package bootstrap

import (
	"context"

	"github.com/ryanyen2/Scholet/internal/application/explorer"
	"github.com/ryanyen2/Scholet/internal/config"
	"github.com/ryanyen2/Scholet/internal/infrastructure/database/redis"
	"github.com/ryanyen2/Scholet/internal/infrastructure/messaging/kafka"
	"github.com/ryanyen2/Scholet/internal/infrastructure/monitoring/logging"
	"github.com/ryanyen2/Scholet/internal/infrastructure/storage/minio"
	"github.com/ryanyen2/Scholet/internal/interfaces/http/handlers"
	"github.com/ryanyen2/Scholet/pkg/errors"
)

// SourceKafka tags messages consumed from the chat topic.
const SourceKafka = "kafka"

// ChatHandler applies consumed chat envelopes to their sessions. Unknown
// sessions and rejected instructions are reported as validation errors so
// the consumer does not retry them.
func ChatHandler(svc explorer.Service, log logging.Logger) kafka.MessageHandler {
	return func(ctx context.Context, msg *kafka.Message) error {
		env, err := kafka.DecodeChatEnvelope(msg)
		if err != nil {
			return err
		}
		res, err := svc.ApplyMessage(ctx, env.SessionID, SourceKafka, env.Message)
		if err != nil {
			code := errors.GetCode(err)
			if code == errors.ErrCodeSessionNotFound || code == errors.ErrCodeInvalidInstruction {
				return errors.Wrap(err, errors.ErrCodeValidation, "chat message rejected")
			}
			return err
		}
		log.Debug("chat message applied",
			logging.SessionID(env.SessionID),
			logging.Int64("message_id", env.Message.ID),
			logging.Bool("duplicate", res.Duplicate))
		return nil
	}
}

// DatasetReloader swaps the served dataset when a dataset.updated event
// arrives.
func DatasetReloader(svc explorer.Service, loader *DatasetLoader, log logging.Logger) kafka.MessageHandler {
	return func(ctx context.Context, msg *kafka.Message) error {
		p, err := kafka.DecodeDatasetUpdated(msg)
		if err != nil {
			return err
		}
		set, stats, err := loader.Load(ctx, DatasetRef{Source: p.Source, Path: p.Path, Object: p.Object, Format: p.Format})
		if err != nil {
			return err
		}
		info, err := svc.LoadDataset(ctx, set, stats)
		if err != nil {
			return err
		}
		log.Info("dataset reloaded from event",
			logging.String("version", info.Version),
			logging.Int("records", info.Records))
		return nil
	}
}

// SelectionPublisher forwards selection changes to Kafka, keyed by session
// so one session's events stay ordered.
type SelectionPublisher struct {
	producer kafka.Publisher
	topic    string
}

func NewSelectionPublisher(p kafka.Publisher, topic string) *SelectionPublisher {
	if topic == "" {
		topic = kafka.TopicSelectionChanged
	}
	return &SelectionPublisher{producer: p, topic: topic}
}

func (s *SelectionPublisher) PublishSelectionChanged(ctx context.Context, ev explorer.SelectionEvent) error {
	env, err := kafka.NewEventEnvelope(kafka.EventSelectionChanged, "scholet-apiserver", kafka.SelectionChangedPayload{
		SessionID: ev.SessionID,
		MessageID: ev.MessageID,
		Touched:   ev.Touched,
		Revision:  ev.Revision,
	})
	if err != nil {
		return err
	}
	msg, err := env.ToMessage(s.topic, ev.SessionID)
	if err != nil {
		return err
	}
	return s.producer.Publish(ctx, msg)
}

func RedisProbe(c *redis.Client) handlers.Probe {
	return handlers.Probe{Name: "redis", Required: false, Check: c.Ping}
}

func MinIOProbe(c *minio.Client) handlers.Probe {
	return handlers.Probe{Name: "minio", Required: false, Check: c.HealthCheck}
}

// KafkaProbe checks that the chat topic is readable.
func KafkaProbe(cfg config.KafkaConfig, log logging.Logger) handlers.Probe {
	return handlers.Probe{Name: "kafka", Check: func(ctx context.Context) error {
		m, err := kafka.NewTopicManager(cfg.Brokers, log)
		if err != nil {
			return err
		}
		defer m.Close()
		ok, err := m.TopicExists(ctx, cfg.MessageTopic)
		if err != nil {
			return err
		}
		if !ok {
			return errors.NotFound("topic missing").WithDetail(cfg.MessageTopic)
		}
		return nil
	}}
}

// DatasetProbe fails while no records are served.
func DatasetProbe(svc explorer.Service) handlers.Probe {
	return handlers.Probe{Name: "dataset", Required: true, Check: func(context.Context) error {
		if svc.Dataset().Records == 0 {
			return errors.New(errors.ErrCodeDatasetEmpty, "no dataset loaded")
		}
		return nil
	}}
}
