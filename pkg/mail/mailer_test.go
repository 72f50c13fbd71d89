package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSMTPClient struct {
	from  string
	rcpts []string
	data  bytes.Buffer
	quit  bool
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func (f *fakeSMTPClient) Mail(from string) error { f.from = from; return nil }
func (f *fakeSMTPClient) Rcpt(to string) error { f.rcpts = append(f.rcpts, to); return nil }
func (f *fakeSMTPClient) Data() (io.WriteCloser, error) { return nopWriteCloser{&f.data}, nil }
func (f *fakeSMTPClient) Quit() error { f.quit = true; return nil }
func (f *fakeSMTPClient) Close() error { return nil }
func (f *fakeSMTPClient) StartTLS(*tls.Config) error { return nil }
func (f *fakeSMTPClient) Auth(smtp.Auth) error { return nil }
func (f *fakeSMTPClient) Extension(string) (bool, string) { return false, "" }

func newFakeMailer(t *testing.T, cfg SMTPSettings) (*smtpMailer, *fakeSMTPClient) {
	t.Helper()
	m, err := NewSMTPMailer(cfg)
	require.NoError(t, err)

	client := &fakeSMTPClient{}
	sm := m.(*smtpMailer)
	sm.dialFn = func(context.Context, SMTPSettings) (net.Conn, smtpClient, error) {
		server, peer := net.Pipe()
		t.Cleanup(func() { _ = peer.Close() })
		return server, client, nil
	}
	sm.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return sm, client
}

func TestNewSMTPMailerValidatesConfig(t *testing.T) {
	_, err := NewSMTPMailer(SMTPSettings{Enabled: true})
	require.ErrorContains(t, err, "host is required")

	_, err = NewSMTPMailer(SMTPSettings{Enabled: true, Host: "smtp.example.com"})
	require.ErrorContains(t, err, "port is required")

	mailer, err := NewSMTPMailer(SMTPSettings{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, mailer)
}

func TestSMTPMailerSendDisabled(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{Enabled: false})
	require.NoError(t, err)

	err = mailer.Send(context.Background(), Message{To: []string{"test@example.com"}, Subject: "Test", Body: "Hello"})
	require.ErrorIs(t, err, ErrSMTPDisabled)
}

func TestSMTPMailerDefaultTimeout(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{Enabled: true, Host: "smtp.example.com", Port: 465, UseTLS: true})
	require.NoError(t, err)
	require.Equal(t, 10*time.Second, mailer.(*smtpMailer).cfg.Timeout)
}

func TestSMTPMailerSendDeliversEnvelope(t *testing.T) {
	mailer, client := newFakeMailer(t, SMTPSettings{
		Enabled: true,
		Host:    "smtp.example.com",
		Port:    587,
		From:    "no-reply@workpass.test",
	})

	err := mailer.Send(context.Background(), Message{
		To:       []string{"bob@gmail.com", " bob@gmail.com "},
		Subject:  "You're in",
		Body:     "Welcome aboard",
		Category: "approval",
	})
	require.NoError(t, err)

	require.Equal(t, "no-reply@workpass.test", client.from)
	require.Equal(t, []string{"bob@gmail.com"}, client.rcpts)
	require.True(t, client.quit)

	content := client.data.String()
	require.Contains(t, content, "X-Category: approval\r\n")
	require.Contains(t, content, "Date: Fri, 02 Jan 2026 03:04:05 +0000\r\n")
	require.True(t, strings.HasSuffix(content, "\r\n\r\nWelcome aboard"))
}

func TestSMTPMailerSendRequiresRecipients(t *testing.T) {
	mailer, _ := newFakeMailer(t, SMTPSettings{Enabled: true, Host: "smtp.example.com", Port: 587, From: "no-reply@example.com"})

	err := mailer.Send(context.Background(), Message{To: []string{"   ", "\t"}})
	require.ErrorContains(t, err, "at least one recipient")
}

func TestSMTPMailerSendValidatesAddresses(t *testing.T) {
	mailer, _ := newFakeMailer(t, SMTPSettings{Enabled: true, Host: "smtp.example.com", Port: 587})

	err := mailer.Send(context.Background(), Message{From: "invalid-from", To: []string{"user@example.com"}})
	require.ErrorContains(t, err, "invalid from address")

	err = mailer.Send(context.Background(), Message{From: "ops@example.com", To: []string{"user@example.com", "bad-address"}})
	require.ErrorContains(t, err, "invalid recipient address")
}

func TestFormatMessageSanitisesSubject(t *testing.T) {
	content := formatMessage(Message{
		From:    "from@example.com",
		To:      []string{"to@example.com"},
		Subject: "Subject\r\nBcc: victim@example.com",
		Body:    "Body",
	}, time.Now())

	require.Contains(t, content, "From: from@example.com")
	require.Contains(t, content, "Subject: Subject  Bcc: victim@example.com\r\n")
	require.Contains(t, content, "@example.com>\r\n")
	require.NotContains(t, content, "X-Category")
}

func TestUniqueAddresses(t *testing.T) {
	result := uniqueAddresses([]string{"alice@example.com", "bob@example.com", " alice@example.com ", "", "bob@example.com"})
	require.Equal(t, []string{"alice@example.com", "bob@example.com"}, result)
}

func TestLogMailerNeverLogsBody(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	mailer := NewLogMailer(zap.New(core))

	err := mailer.Send(context.Background(), Message{
		To:       []string{"jane@acme.io"},
		Subject:  "Your verification code",
		Body:     "Your code is 482913",
		Category: "otp",
	})
	require.NoError(t, err)

	entries := recorded.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "otp", fields["category"])
	require.Equal(t, []interface{}{"j***@acme.io"}, fields["to"])
	for _, value := range fields {
		if s, ok := value.(string); ok {
			require.NotContains(t, s, "482913")
		}
	}

	require.Error(t, mailer.Send(context.Background(), Message{}))
}
