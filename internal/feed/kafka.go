package feed

import (
	"context"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/N129BZ/stratuxmap/internal/storage"
)

// KafkaSink produces records to a Kafka topic, keyed by station so each
// station's reports stay ordered within a partition.
type KafkaSink struct {
	writer *kafkago.Writer
}

// NewKafkaSink creates a producer for topic.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &KafkaSink{writer: w}
}

func (k *KafkaSink) Name() string { return "kafka" }

func (k *KafkaSink) Write(ctx context.Context, r storage.Record) error {
	msg, err := recordToMessage(r)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, msg)
}

func (k *KafkaSink) Close() error {
	return k.writer.Close()
}

func recordToMessage(r storage.Record) (kafkago.Message, error) {
	data, err := marshalRecord(r, false)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s: %w", r.Key(), err)
	}
	return kafkago.Message{
		Key:   []byte(r.Station),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "report_type", Value: []byte(r.Type)},
			{Key: "received_at", Value: []byte(r.ReceivedAt.Format(time.RFC3339))},
		},
	}, nil
}
