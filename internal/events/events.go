// Package events publishes verification lifecycle events for downstream
// consumers such as CRM sync and analytics.
package events

//go:generate mockgen -source=events.go -destination=mocks/mocks.go -package=mocks Publisher

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type names an event on the verification stream.
type Type string

const (
	TypeOTPVerified      Type = "verification.otp_verified"
	TypeManualSubmitted  Type = "verification.manual_submitted"
	TypeManualApproved   Type = "verification.manual_approved"
	TypeManualRejected   Type = "verification.manual_rejected"
	TypeWaitlistJoined   Type = "waitlist.joined"
	TypeWaitlistApproved Type = "waitlist.approved"
	TypeWaitlistRejected Type = "waitlist.rejected"
	TypeUserProvisioned  Type = "user.provisioned"
)

// Event is the envelope written to the stream. Subject is the partition key,
// usually a user ID, so all events for one member stay ordered.
type Event struct {
	ID         string            `json:"id"`
	Type       Type              `json:"type"`
	Subject    string            `json:"subject"`
	OccurredAt time.Time         `json:"occurred_at"`
	Data       map[string]string `json:"data,omitempty"`
}

// New stamps an event with a fresh ID and the current UTC time.
func New(eventType Type, subject string, data map[string]string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Subject:    subject,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Publisher delivers events to a broker.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close()
}

// NopPublisher discards every event. It is used when no broker is configured.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() {}
