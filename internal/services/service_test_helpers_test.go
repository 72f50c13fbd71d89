package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/workpass/internal/auth/providers"
	"github.com/charlesng35/workpass/internal/database/testutil"
	"github.com/charlesng35/workpass/internal/events"
	"github.com/charlesng35/workpass/internal/models"
	"github.com/charlesng35/workpass/pkg/crypto"
)

var testOTPSecret = []byte("0123456789abcdef0123456789abcdef")

type sentNotification struct {
	Kind NotificationKind
	To   string
	Data map[string]string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (f *fakeNotifier) Send(_ context.Context, kind NotificationKind, to string, data map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentNotification{Kind: kind, To: to, Data: data})
	return f.err
}

func (f *fakeNotifier) last(t *testing.T) sentNotification {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

func (f *fakeNotifier) count(kind NotificationKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sent {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, event events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

func (f *fakePublisher) Close() {}

func (f *fakePublisher) types() []events.Type {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]events.Type, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testStack wires every verification service against one in-memory database.
type testStack struct {
	db          *gorm.DB
	clock       *testClock
	notifier    *fakeNotifier
	publisher   *fakePublisher
	identities  *providers.LocalProvider
	audit       *AuditService
	companies   *CompanyService
	intents     *SignupIntentService
	provisioner *Provisioner
	otp         *OTPService
	manual      *ManualVerificationService
	waitlist    *WaitlistService
	users       *UserService
	signup      *SignupService
	code        string
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	s := &testStack{
		db:        db,
		clock:     newTestClock(),
		notifier:  &fakeNotifier{},
		publisher: &fakePublisher{},
		code:      "123456",
	}

	var err error
	s.identities, err = providers.NewLocalProvider(db, providers.LocalConfig{Clock: s.clock.Now})
	require.NoError(t, err)
	s.audit, err = NewAuditService(db)
	require.NoError(t, err)
	s.companies, err = NewCompanyService(db)
	require.NoError(t, err)
	s.intents, err = NewSignupIntentService(db)
	require.NoError(t, err)
	s.intents.now = s.clock.Now

	s.provisioner, err = NewProvisioner(db, s.identities,
		WithProvisionerClock(s.clock.Now),
		WithProvisionerPublisher(s.publisher),
	)
	require.NoError(t, err)

	s.otp, err = NewOTPService(db, s.companies, s.notifier, OTPConfig{Secret: testOTPSecret},
		WithOTPClock(s.clock.Now),
		WithOTPCodeGenerator(func() (string, error) { return s.code, nil }),
		WithOTPPublisher(s.publisher),
		WithOTPAudit(s.audit),
	)
	require.NoError(t, err)

	s.manual, err = NewManualVerificationService(db, s.companies, s.notifier,
		WithManualClock(s.clock.Now),
		WithManualPublisher(s.publisher),
		WithManualAudit(s.audit),
	)
	require.NoError(t, err)

	s.waitlist, err = NewWaitlistService(db, s.companies, s.intents, s.provisioner, s.notifier,
		WithWaitlistClock(s.clock.Now),
		WithWaitlistPublisher(s.publisher),
		WithWaitlistAudit(s.audit),
	)
	require.NoError(t, err)

	s.users, err = NewUserService(db, s.identities, s.audit)
	require.NoError(t, err)
	s.users.now = s.clock.Now

	s.signup, err = NewSignupService(SignupDeps{
		DB:          db,
		Identities:  s.identities,
		Intents:     s.intents,
		OTP:         s.otp,
		Companies:   s.companies,
		Provisioner: s.provisioner,
		Audit:       s.audit,
	})
	require.NoError(t, err)

	return s
}

// seedUser provisions an unverified, active member.
func (s *testStack) seedUser(t *testing.T, email string) *models.User {
	t.Helper()
	hash, err := crypto.HashPassword("correct-horse")
	require.NoError(t, err)
	user, err := s.provisioner.Provision(context.Background(), ProvisionInput{
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Dana",
		Source:       "test",
	})
	require.NoError(t, err)
	return user
}

// seedAdmin provisions a verified admin.
func (s *testStack) seedAdmin(t *testing.T) *models.User {
	t.Helper()
	hash, err := crypto.HashPassword("admin-password")
	require.NoError(t, err)
	admin, err := s.provisioner.Provision(context.Background(), ProvisionInput{
		Email:        "root@workpass.io",
		PasswordHash: hash,
		FirstName:    "Root",
		Verified:     true,
		Onboarded:    true,
		Method:       models.VerificationManual,
		IsAdmin:      true,
		Source:       "test",
	})
	require.NoError(t, err)
	return admin
}

func (s *testStack) reloadUser(t *testing.T, id string) models.User {
	t.Helper()
	var user models.User
	require.NoError(t, s.db.First(&user, "id = ?", id).Error)
	return user
}
