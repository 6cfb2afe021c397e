package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event is the message published for every alert.
type Event struct {
	ID          string    `json:"id"`
	Destination string    `json:"destination"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

// Kafka publishes alerts to a topic, keyed by destination so one user's
// alerts stay ordered within a partition.
type Kafka struct {
	producer sarama.SyncProducer
	topic    string
	log      *zap.Logger
}

func NewKafka(producer sarama.SyncProducer, topic string, log *zap.Logger) *Kafka {
	if log == nil {
		log = zap.NewNop()
	}
	return &Kafka{producer: producer, topic: topic, log: log}
}

// NewSyncProducer dials the brokers with acks from all in-sync replicas.
func NewSyncProducer(brokers []string, clientID string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Return.Successes = true
	return sarama.NewSyncProducer(brokers, cfg)
}

func (k *Kafka) Send(ctx context.Context, destination, message string) error {
	if k == nil || k.producer == nil {
		return errors.New("kafka disabled")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	ev := Event{
		ID:          uuid.NewString(),
		Destination: destination,
		Message:     message,
		CreatedAt:   time.Now().UTC(),
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("kafka: marshal event: %w", err)
	}
	partition, offset, err := k.producer.SendMessage(&sarama.ProducerMessage{
		Topic:     k.topic,
		Key:       sarama.StringEncoder(destination),
		Value:     sarama.ByteEncoder(data),
		Timestamp: ev.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("kafka: publish: %w", err)
	}
	k.log.Debug("alert_published",
		zap.String("event_id", ev.ID),
		zap.String("topic", k.topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

func (k *Kafka) Close() error {
	if k == nil || k.producer == nil {
		return nil
	}
	return k.producer.Close()
}
