// Package events publishes order lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	otelkafka "github.com/Trendyol/otel-kafka-konsumer"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"storefront/pkg/order"
)

// OrderPlacedType is the event type header value.
const OrderPlacedType = "OrderPlaced"

// OrderPlaced is the payload published after an order commits.
type OrderPlaced struct {
	OrderID     string          `json:"order_id"`
	Items       []order.Item    `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Address     order.Address   `json:"user_address"`
	CreatedOn   time.Time       `json:"created_on"`
}

// Producer writes a single Kafka message.
type Producer interface {
	WriteMessage(ctx context.Context, msg kafka.Message) error
	Close() error
}

// KafkaPublisher publishes order events to a Kafka topic.
type KafkaPublisher struct {
	producer Producer
}

// NewKafkaPublisher returns a publisher writing to topic through a traced
// Kafka writer.
func NewKafkaPublisher(brokers []string, topic string, tp trace.TracerProvider) (*KafkaPublisher, error) {
	base := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	w, err := otelkafka.NewWriter(base,
		otelkafka.WithTracerProvider(tp),
		otelkafka.WithPropagator(propagation.TraceContext{}),
		otelkafka.WithAttributes([]attribute.KeyValue{
			semconv.MessagingDestinationNameKey.String(topic),
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("creating kafka writer: %w", err)
	}
	return NewPublisher(w), nil
}

// NewPublisher returns a publisher writing through p.
func NewPublisher(p Producer) *KafkaPublisher {
	return &KafkaPublisher{producer: p}
}

// OrderPlaced publishes the order keyed by its id.
func (p *KafkaPublisher) OrderPlaced(ctx context.Context, o order.Order) error {
	payload, err := json.Marshal(OrderPlaced{
		OrderID:     o.ID,
		Items:       o.Items,
		TotalAmount: o.TotalAmount,
		Address:     o.Address,
		CreatedOn:   o.CreatedOn,
	})
	if err != nil {
		return fmt.Errorf("encode order placed: %w", err)
	}

	// WriteMessage (singular) keeps the span context attached to the message.
	msg := kafka.Message{
		Key:     []byte(o.ID),
		Value:   payload,
		Headers: []kafka.Header{{Key: "type", Value: []byte(OrderPlacedType)}},
	}
	if err := p.producer.WriteMessage(ctx, msg); err != nil {
		return fmt.Errorf("write order placed: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// Noop discards events. It is used when no broker is configured.
type Noop struct{}

// OrderPlaced implements order.Publisher.
func (Noop) OrderPlaced(context.Context, order.Order) error { return nil }
