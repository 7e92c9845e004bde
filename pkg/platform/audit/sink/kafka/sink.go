// Package kafka ships audit events to a Kafka topic so downstream
// consumers (SIEM, compliance archive) get them without coupling to this
// service's storage.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "garrison/pkg/platform/audit"
)

// DefaultTopic is where verification audit events land.
const DefaultTopic = "garrison.audit.events"

// Sink produces audit events to a Kafka topic. It implements audit.Appender.
type Sink struct {
	client *kgo.Client
	topic  string
}

// New constructs a Sink over an existing franz-go client.
func New(client *kgo.Client, topic string) *Sink {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Sink{client: client, topic: topic}
}

// Dial creates a client for the brokers and returns a Sink over it.
func Dial(brokers []string, topic string) (*Sink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial kafka: %w", err)
	}
	return New(client, topic), nil
}

// EnsureTopic creates the topic when missing. Safe to call at startup.
func (s *Sink) EnsureTopic(ctx context.Context, partitions int32, replication int16) error {
	adm := kadm.NewClient(s.client)
	resp, err := adm.CreateTopics(ctx, partitions, replication, nil, s.topic)
	if err != nil {
		return fmt.Errorf("create audit topic: %w", err)
	}
	for _, res := range resp {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create audit topic %s: %w", res.Topic, res.Err)
		}
	}
	return nil
}

// wireEvent is the JSON shape produced to the topic.
type wireEvent struct {
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"userId,omitempty"`
	Action    string    `json:"action"`
	Channel   string    `json:"channel,omitempty"`
	Address   string    `json:"address,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	RequestID string    `json:"requestId,omitempty"`
	ClientIP  string    `json:"clientIp,omitempty"`
}

// Append produces the event synchronously. Audit durability wins over
// request latency here; the publisher's async buffer absorbs the cost.
func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(wireEvent{
		Category:  string(event.Category),
		Timestamp: event.Timestamp,
		UserID:    userIDOrEmpty(event),
		Action:    event.Action,
		Channel:   event.Channel,
		Address:   event.Address,
		Reason:    event.Reason,
		RequestID: event.RequestID,
		ClientIP:  event.ClientIP,
	})
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.Action),
		Value: payload,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *Sink) Close() {
	s.client.Close()
}

func userIDOrEmpty(event audit.Event) string {
	if event.UserID.IsZero() {
		return ""
	}
	return event.UserID.String()
}
