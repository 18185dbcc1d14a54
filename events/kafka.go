package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"codebattle-server/domain"
)

const DefaultTopic = "codebattle.matches"

// KafkaSink appends events to a topic keyed by room, so one room's events
// stay ordered within a partition.
type KafkaSink struct {
	writer *kafka.Writer
}

func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			Async:                  true,
			BatchTimeout:           50 * time.Millisecond,
			AllowAutoTopicCreation: true,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					slog.Warn("kafka publish failed", "messages", len(messages), "error", err)
				}
			},
		},
	}, nil
}

func (k *KafkaSink) Publish(ctx context.Context, ev domain.Event) {
	msg, err := kafkaMessage(ev)
	if err != nil {
		slog.Error("encode event", "kind", ev.Kind, "error", err)
		return
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		slog.Warn("kafka publish failed", "kind", ev.Kind, "room", ev.Room, "error", err)
	}
}

// Close flushes pending writes.
func (k *KafkaSink) Close() error {
	return k.writer.Close()
}

func kafkaMessage(ev domain.Event) (kafka.Message, error) {
	value, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(ev.Room),
		Value: value,
		Time:  ev.Timestamp,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(ev.Kind)},
		},
	}, nil
}
