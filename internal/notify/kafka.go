// README: Kafka publisher for the domain event stream consumed by downstream services.
package notify

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
)

// Writer is the subset of kafka.Writer used by the publisher; tests inject their own.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}}
}

func NewKafkaPublisherWithWriter(w Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

// Notify keys by user so one user's events stay ordered within a partition.
func (p *KafkaPublisher) Notify(ctx context.Context, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(ev.UserID), Value: b})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
