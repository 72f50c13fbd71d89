package mail

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// ErrSMTPDisabled signals that SMTP delivery is disabled via configuration.
var ErrSMTPDisabled = errors.New("smtp: delivery disabled")

// Message represents an outbound email.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
	// Category is attached as an X-Category header and used in log output.
	Category string
}

// Mailer defines behaviour for sending email messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer records outbound mail metadata without delivering it. Bodies are
// never logged since they may carry one-time codes or reset links.
type LogMailer struct {
	log *zap.Logger
}

// NewLogMailer returns a Mailer that only logs recipients and subjects.
func NewLogMailer(log *zap.Logger) *LogMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogMailer{log: log}
}

// Send implements Mailer.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	recipients := uniqueAddresses(msg.To)
	if len(recipients) == 0 {
		return errors.New("mail: at least one recipient is required")
	}
	masked := make([]string, len(recipients))
	for i, rcpt := range recipients {
		masked[i] = maskAddress(rcpt)
	}
	m.log.Info("mail suppressed (smtp disabled)",
		zap.String("category", msg.Category),
		zap.String("subject", msg.Subject),
		zap.Strings("to", masked),
	)
	return nil
}

func uniqueAddresses(addresses []string) []string {
	seen := make(map[string]struct{}, len(addresses))
	var result []string
	for _, addr := range addresses {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		if _, exists := seen[addr]; exists {
			continue
		}
		seen[addr] = struct{}{}
		result = append(result, addr)
	}
	return result
}

func maskAddress(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at <= 0 {
		return "***"
	}
	return addr[:1] + "***" + addr[at:]
}
