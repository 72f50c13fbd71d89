package checks

import (
	"context"
	"time"

	"github.com/charlesng35/workpass/internal/monitoring"
)

// Pinger is satisfied by the Redis store and the Kafka publisher.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Redis probes the shared rate limit store. Rate limiting falls back to
// allowing requests, so a failure only degrades readiness.
func Redis(client Pinger) monitoring.Check {
	return optional("redis", client)
}

// Kafka probes the event stream. Events are published best effort, so a
// failure only degrades readiness.
func Kafka(client Pinger) monitoring.Check {
	return optional("kafka", client)
}

func optional(name string, client Pinger) monitoring.Check {
	return monitoring.NewCheck(name, func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if client == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: name + " unavailable"}
		}
		result := monitoring.ResultFromError(client.Ping(ctx), time.Since(start))
		if result.Status == monitoring.StatusDown {
			result.Status = monitoring.StatusDegraded
		}
		return result
	})
}
