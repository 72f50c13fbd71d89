package app

import (
	"strings"

	"github.com/charlesng35/workpass/internal/events"
)

// KafkaPublisherConfig converts EventsConfig into the events package representation.
func (c EventsConfig) KafkaPublisherConfig() events.KafkaConfig {
	brokers := make([]string, 0, len(c.Kafka.Brokers))
	for _, broker := range c.Kafka.Brokers {
		if trimmed := strings.TrimSpace(broker); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}

	return events.KafkaConfig{
		Brokers:           brokers,
		Topic:             strings.TrimSpace(c.Kafka.Topic),
		ClientID:          strings.TrimSpace(c.Kafka.ClientID),
		Partitions:        c.Kafka.Partitions,
		ReplicationFactor: c.Kafka.ReplicationFactor,
	}
}
