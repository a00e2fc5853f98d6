package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/Leganyst/calendar-core/internal/model"
)

// Сообщение в Kafka. Ключ, бизнес, чтобы события одного бизнеса шли по порядку.
type message struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	BusinessID    string          `json:"business_id"`
	ProviderID    string          `json:"provider_id,omitempty"`
	AppointmentID string          `json:"appointment_id,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Details       json.RawMessage `json:"details,omitempty"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
			BatchTimeout:           50 * time.Millisecond,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, events ...model.Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		msg, err := toKafkaMessage(ctx, e)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func toKafkaMessage(ctx context.Context, e model.Event) (kafka.Message, error) {
	body := message{
		EventID:    e.ID.String(),
		EventType:  string(e.EventType),
		BusinessID: e.BusinessID.String(),
		OccurredAt: e.CreatedAt,
	}
	if e.ProviderID != nil {
		body.ProviderID = e.ProviderID.String()
	}
	if e.AppointmentID != nil {
		body.AppointmentID = e.AppointmentID.String()
	}
	if len(e.Details) > 0 {
		body.Details = json.RawMessage(e.Details)
	}

	value, err := json.Marshal(body)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode event %s: %w", e.ID, err)
	}

	headers := []kafka.Header{
		{Key: "event_id", Value: []byte(body.EventID)},
		{Key: "event_type", Value: []byte(body.EventType)},
	}
	return kafka.Message{
		Key:     []byte(body.BusinessID),
		Value:   value,
		Headers: injectTraceHeaders(ctx, headers),
		Time:    e.CreatedAt,
	}, nil
}

// injectTraceHeaders добавляет W3C trace context в заголовки сообщения.
func injectTraceHeaders(ctx context.Context, headers []kafka.Header) []kafka.Header {
	carrier := &headerCarrier{headers: headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier.headers
}

type headerCarrier struct {
	headers []kafka.Header
}

func (c *headerCarrier) Get(key string) string {
	for _, h := range c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

func (c *headerCarrier) Set(key string, value string) {
	for i := range c.headers {
		if c.headers[i].Key == key {
			c.headers[i].Value = []byte(value)
			return
		}
	}
	c.headers = append(c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

var _ propagation.TextMapCarrier = (*headerCarrier)(nil)
