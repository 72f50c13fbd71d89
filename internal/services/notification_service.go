package services

//go:generate mockgen -source=notification_service.go -destination=mocks/mocks.go -package=mocks Notifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/charlesng35/workpass/pkg/logger"
	"github.com/charlesng35/workpass/pkg/mail"
	"github.com/charlesng35/workpass/pkg/metrics"
)

// NotificationKind selects the message template sent to a member.
type NotificationKind string

const (
	NotifyOTPCode          NotificationKind = "otp_code"
	NotifyManualApproved   NotificationKind = "manual_approved"
	NotifyManualRejected   NotificationKind = "manual_rejected"
	NotifyWaitlistReceived NotificationKind = "waitlist_received"
	NotifyWaitlistApproved NotificationKind = "waitlist_approved"
	NotifyWaitlistRejected NotificationKind = "waitlist_rejected"
	NotifyPasswordReset    NotificationKind = "password_reset"
)

// Notifier delivers member-facing notifications. Data keys are template
// variables such as "code", "first_name" or "notes".
type Notifier interface {
	Send(ctx context.Context, kind NotificationKind, to string, data map[string]string) error
}

type notificationTemplate struct {
	subject string
	body    *template.Template
}

var notificationTemplates = map[NotificationKind]struct {
	subject string
	body    string
}{
	NotifyOTPCode: {
		"Your {{.app}} verification code",
		`Your verification code is {{.code}}.

It expires in {{.ttl_minutes}} minutes. If you did not request it, ignore this email.
`,
	},
	NotifyManualApproved: {
		"Your {{.app}} verification was approved",
		`Good news{{with .first_name}}, {{.}}{{end}}. Your employment at {{.corporate_email}} has been verified.

Sign in at {{.base_url}} to finish onboarding.
`,
	},
	NotifyManualRejected: {
		"Your {{.app}} verification request",
		`We could not verify your employment from the details you sent.
{{with .notes}}
Reviewer notes: {{.}}
{{end}}
You can submit a new request at {{.base_url}}.
`,
	},
	NotifyWaitlistReceived: {
		"You are on the {{.app}} waitlist",
		`Thanks for applying with {{.corporate_email}}. We will email you here once an admin has reviewed your application.
`,
	},
	NotifyWaitlistApproved: {
		"Welcome to {{.app}}",
		`Your application was approved and your account is ready.

Sign in at {{.base_url}} with {{.corporate_email}} and the password you chose at signup.
`,
	},
	NotifyWaitlistRejected: {
		"Your {{.app}} application",
		`We are unable to approve your application at this time.
{{with .notes}}
Reviewer notes: {{.}}
{{end}}`,
	},
	NotifyPasswordReset: {
		"Reset your {{.app}} password",
		`Use the link below to choose a new password. It expires in {{.ttl_minutes}} minutes.

{{.base_url}}/reset-password?token={{.token}}
`,
	},
}

// MailNotifierConfig configures MailNotifier.
type MailNotifierConfig struct {
	From    string
	AppName string
	BaseURL string
}

// MailNotifier renders notification templates and sends them through a Mailer.
type MailNotifier struct {
	mailer    mail.Mailer
	cfg       MailNotifierConfig
	templates map[NotificationKind]notificationTemplate
}

var _ Notifier = (*MailNotifier)(nil)

// NewMailNotifier parses the built-in templates.
func NewMailNotifier(mailer mail.Mailer, cfg MailNotifierConfig) (*MailNotifier, error) {
	if mailer == nil {
		return nil, errors.New("mail notifier: mailer is required")
	}
	if strings.TrimSpace(cfg.AppName) == "" {
		cfg.AppName = "Workpass"
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	templates := make(map[NotificationKind]notificationTemplate, len(notificationTemplates))
	for kind, raw := range notificationTemplates {
		subject, err := renderText(string(kind)+".subject", raw.subject, map[string]string{"app": cfg.AppName})
		if err != nil {
			return nil, fmt.Errorf("mail notifier: %s subject: %w", kind, err)
		}
		body, err := template.New(string(kind)).Option("missingkey=zero").Parse(raw.body)
		if err != nil {
			return nil, fmt.Errorf("mail notifier: %s body: %w", kind, err)
		}
		templates[kind] = notificationTemplate{subject: subject, body: body}
	}

	return &MailNotifier{mailer: mailer, cfg: cfg, templates: templates}, nil
}

// Send implements Notifier.
func (n *MailNotifier) Send(ctx context.Context, kind NotificationKind, to string, data map[string]string) error {
	tmpl, ok := n.templates[kind]
	if !ok {
		return fmt.Errorf("mail notifier: unknown notification %q", kind)
	}
	if strings.TrimSpace(to) == "" {
		return errors.New("mail notifier: recipient is required")
	}

	vars := make(map[string]string, len(data)+2)
	for k, v := range data {
		vars[k] = v
	}
	vars["app"] = n.cfg.AppName
	vars["base_url"] = n.cfg.BaseURL

	var body bytes.Buffer
	if err := tmpl.body.Execute(&body, vars); err != nil {
		return fmt.Errorf("mail notifier: render %s: %w", kind, err)
	}

	return n.mailer.Send(ensureContext(ctx), mail.Message{
		From:     n.cfg.From,
		To:       []string{to},
		Subject:  tmpl.subject,
		Body:     body.String(),
		Category: string(kind),
	})
}

func renderText(name, text string, data map[string]string) (string, error) {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	if err := tmpl.Execute(&out, data); err != nil {
		return "", err
	}
	return out.String(), nil
}

// notifyBestEffort sends a notification and only logs failures. Callers use
// it after their database work has committed.
func notifyBestEffort(ctx context.Context, notifier Notifier, log *zap.Logger, kind NotificationKind, to string, data map[string]string) {
	if notifier == nil {
		return
	}
	if err := notifier.Send(ctx, kind, to, data); err != nil {
		metrics.NotificationFailures.WithLabelValues(string(kind)).Inc()
		if log == nil {
			log = logger.WithModule("notifications")
		}
		log.Warn("notification failed",
			zap.String("kind", string(kind)),
			logger.Email("to", to),
			zap.Error(err),
		)
	}
}
