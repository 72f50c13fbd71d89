package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaConfig describes the broker connection used by KafkaPublisher.
// Partitions and ReplicationFactor of -1 defer to the broker defaults when
// EnsureTopic creates the topic.
type KafkaConfig struct {
	Brokers           []string
	Topic             string
	ClientID          string
	Partitions        int32
	ReplicationFactor int16
}

type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Ping(ctx context.Context) error
	Close()
}

type topicAdmin interface {
	CreateTopic(ctx context.Context, partitions int32, replicationFactor int16, configs map[string]*string, topic string) (kadm.CreateTopicResponse, error)
}

// KafkaPublisher writes events to a single topic using franz-go.
type KafkaPublisher struct {
	client      producer
	admin       topicAdmin
	topic       string
	partitions  int32
	replication int16
}

// NewKafkaPublisher builds a producer client. Extra kgo options are appended
// after the defaults.
func NewKafkaPublisher(cfg KafkaConfig, opts ...kgo.Opt) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("events: kafka brokers are required")
	}
	topic := strings.TrimSpace(cfg.Topic)
	if topic == "" {
		return nil, errors.New("events: kafka topic is required")
	}

	base := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}
	if cfg.ClientID != "" {
		base = append(base, kgo.ClientID(cfg.ClientID))
	}

	client, err := kgo.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("events: kafka client: %w", err)
	}

	partitions, replication := cfg.Partitions, cfg.ReplicationFactor
	if partitions == 0 {
		partitions = -1
	}
	if replication == 0 {
		replication = -1
	}

	return &KafkaPublisher{
		client:      client,
		admin:       kadm.NewClient(client),
		topic:       topic,
		partitions:  partitions,
		replication: replication,
	}, nil
}

// EnsureTopic creates the event topic if the cluster does not have it yet.
func (p *KafkaPublisher) EnsureTopic(ctx context.Context) error {
	if p.admin == nil {
		return errors.New("events: kafka admin client unavailable")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	_, err := p.admin.CreateTopic(ctx, p.partitions, p.replication, nil, p.topic)
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("events: create topic %s: %w", p.topic, err)
	}
	return nil
}

// Publish encodes the event as JSON and waits for the broker to acknowledge it.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	if ctx == nil {
		ctx = context.Background()
	}

	record, err := p.record(event)
	if err != nil {
		return err
	}

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("events: publish %s: %w", event.Type, err)
	}
	return nil
}

// Ping reports whether any seed broker answers.
func (p *KafkaPublisher) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx); err != nil {
		return fmt.Errorf("events: kafka ping: %w", err)
	}
	return nil
}

// Close releases the client connections.
func (p *KafkaPublisher) Close() {
	p.client.Close()
}

func (p *KafkaPublisher) record(event Event) (*kgo.Record, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("events: encode %s: %w", event.Type, err)
	}

	return &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.Subject),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}, nil
}
