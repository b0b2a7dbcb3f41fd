package kafka

import (
	"context"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jwalitptl/repair-desk/internal/model"
	"github.com/jwalitptl/repair-desk/pkg/logger"
)

// kafkaProducer is the subset of *kafka.Producer used here.
type kafkaProducer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Flush(timeoutMs int) int
	Close()
}

// Producer publishes Avro-encoded repair events, keyed by repair ID so one
// request's events stay ordered within a partition.
type Producer struct {
	kafkaProducer kafkaProducer
	topic         string
	logger        *logger.Logger
	tracer        trace.Tracer
}

type Config struct {
	Brokers  string
	Topic    string
	ClientID string
}

func NewProducer(cfg Config, log *logger.Logger) (*Producer, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.Brokers,
		"client.id":          cfg.ClientID,
		"compression.type":   "snappy",
		"acks":               "all",
		"enable.idempotence": true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return newProducer(p, cfg.Topic, log), nil
}

func newProducer(p kafkaProducer, topic string, log *logger.Logger) *Producer {
	return &Producer{
		kafkaProducer: p,
		topic:         topic,
		logger:        log,
		tracer:        otel.Tracer("repair-desk/kafka"),
	}
}

// Publish accepts *model.RepairEvent payloads only.
func (p *Producer) Publish(ctx context.Context, eventType string, payload interface{}) error {
	evt, ok := payload.(*model.RepairEvent)
	if !ok {
		return fmt.Errorf("unsupported payload %T for %s", payload, eventType)
	}

	ctx, span := p.tracer.Start(ctx, "PublishRepairEvent", trace.WithAttributes(
		attribute.String("event.id", evt.ID),
		attribute.String("event.type", eventType),
	))
	defer span.End()

	value, err := EncodeRepairEvent(evt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to encode event")
		return err
	}

	deliveryChan := make(chan kafka.Event, 1)
	err = p.kafkaProducer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Key:            []byte(evt.RepairID),
		Value:          value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "event_id", Value: []byte(evt.ID)},
		},
	}, deliveryChan)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to produce message")
		p.logger.Error(err, "Failed to produce message", "event_id", evt.ID)
		return fmt.Errorf("failed to produce message: %w", err)
	}

	// Wait for delivery report
	select {
	case e := <-deliveryChan:
		m, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery event %v", e)
		}
		if m.TopicPartition.Error != nil {
			span.RecordError(m.TopicPartition.Error)
			span.SetStatus(codes.Error, "Delivery failed")
			p.logger.Error(m.TopicPartition.Error, "Delivery failed", "event_id", evt.ID)
			return fmt.Errorf("delivery failed: %w", m.TopicPartition.Error)
		}
		p.logger.Debug("Event delivered", "event_id", evt.ID, "partition", m.TopicPartition.Partition, "offset", int64(m.TopicPartition.Offset))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Producer) Close() {
	p.kafkaProducer.Flush(5000)
	p.kafkaProducer.Close()
}
