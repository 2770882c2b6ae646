package eventlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// Publisher mirrors session events to a Kafka topic so an external observer
// can follow turn execution across a fleet of gateways.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a Kafka publisher for the given brokers and topic.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
	}
}

// Publish writes one event, keyed by session id so events for a session
// land on one partition in order.
func (p *Publisher) Publish(sessionID, eventType string, data []byte) error {
	value, err := json.Marshal(map[string]any{
		"session_id": sessionID,
		"event_type": eventType,
		"data":       json.RawMessage(orEmptyObject(data)),
		"logged_at":  time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(sessionID),
		Value: value,
		Time:  time.Now(),
	})
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func orEmptyObject(data []byte) []byte {
	if len(data) == 0 {
		return []byte("{}")
	}
	return data
}
