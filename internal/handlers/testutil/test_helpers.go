package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/workpass/internal/api"
	"github.com/charlesng35/workpass/internal/app"
	sharedtestutil "github.com/charlesng35/workpass/internal/database/testutil"
	"github.com/charlesng35/workpass/internal/middleware"
	"github.com/charlesng35/workpass/internal/models"
	"github.com/charlesng35/workpass/internal/services"
	"github.com/charlesng35/workpass/pkg/crypto"
	"github.com/charlesng35/workpass/pkg/response"
)

// Code is the one-time code every environment hands out.
const Code = "424242"

// Sent records one outbound notification.
type Sent struct {
	Kind services.NotificationKind
	To   string
	Data map[string]string
}

// RecordingNotifier captures notifications instead of delivering them.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []Sent
}

// Send implements services.Notifier.
func (n *RecordingNotifier) Send(_ context.Context, kind services.NotificationKind, to string, data map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, Sent{Kind: kind, To: to, Data: data})
	return nil
}

// Last returns the most recent notification of the given kind.
func (n *RecordingNotifier) Last(t *testing.T, kind services.NotificationKind) Sent {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].Kind == kind {
			return n.sent[i]
		}
	}
	t.Fatalf("no %s notification sent", kind)
	return Sent{}
}

// Count reports how many notifications of the given kind were sent.
func (n *RecordingNotifier) Count(kind services.NotificationKind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, s := range n.sent {
		if s.Kind == kind {
			count++
		}
	}
	return count
}

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T        *testing.T
	DB       *gorm.DB
	Router   *gin.Engine
	Services *api.Services
	Notifier *RecordingNotifier
	Config   *app.Config
}

// Config returns the configuration handler tests run with.
func Config() *app.Config {
	cfg := &app.Config{}
	cfg.Server.BaseURL = "http://localhost:8000"
	cfg.Server.RateLimit = app.RateLimitConfig{Requests: 1000, Window: time.Minute}
	cfg.Monitoring.Health.Enabled = true
	cfg.Auth.JWT = app.JWTSettings{
		Secret: "test-suite-super-secret-key-32-bytes!!",
		Issuer: "test-suite",
		TTL:    time.Hour,
	}
	cfg.Auth.Local = app.LocalAuthSettings{LockoutThreshold: 5, LockoutDuration: 15 * time.Minute}
	cfg.Auth.PasswordReset.TokenTTL = time.Hour
	cfg.Verification.OTP = app.OTPSettings{
		Secret:      "0123456789abcdef0123456789abcdef",
		TTL:         10 * time.Minute,
		Cooldown:    time.Minute,
		MaxAttempts: 5,
	}
	return cfg
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T) *Env {
	t.Helper()
	return NewEnvWithConfig(t, Config())
}

// NewEnvWithConfig is NewEnv with a caller supplied configuration.
func NewEnvWithConfig(t *testing.T, cfg *app.Config) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())
	notifier := &RecordingNotifier{}

	svc, err := api.NewServices(db, cfg, api.ServiceOptions{
		Notifier:      notifier,
		CodeGenerator: func() (string, error) { return Code, nil },
	})
	require.NoError(t, err)

	router, err := api.NewRouter(db, svc, cfg, middleware.NewMemoryRateStore())
	require.NoError(t, err)

	return &Env{
		T:        t,
		DB:       db,
		Router:   router,
		Services: svc,
		Notifier: notifier,
		Config:   cfg,
	}
}

// MemberOptions shapes the account CreateMember provisions.
type MemberOptions struct {
	Verified  bool
	Onboarded bool
	CompanyID *string
}

// CreateMember provisions an active member with the given credentials.
func (e *Env) CreateMember(email, password string, opts MemberOptions) *models.User {
	e.T.Helper()
	return e.provision(email, password, opts, false)
}

// CreateAdmin provisions a verified administrator.
func (e *Env) CreateAdmin(email, password string) *models.User {
	e.T.Helper()
	return e.provision(email, password, MemberOptions{Verified: true, Onboarded: true}, true)
}

func (e *Env) provision(email, password string, opts MemberOptions, admin bool) *models.User {
	hashed, err := crypto.HashPassword(password)
	require.NoError(e.T, err)

	input := services.ProvisionInput{
		Email:        email,
		PasswordHash: hashed,
		FirstName:    "Test",
		CompanyID:    opts.CompanyID,
		Verified:     opts.Verified,
		Onboarded:    opts.Onboarded,
		IsAdmin:      admin,
		Source:       "test",
	}
	if opts.Verified {
		input.Method = models.VerificationManual
	}

	user, err := e.Services.Provisioner.Provision(context.Background(), input)
	require.NoError(e.T, err)
	return user
}

// UserPayload captures the subset of user fields returned from the API.
type UserPayload struct {
	ID                 string  `json:"id"`
	Email              string  `json:"email"`
	FirstName          string  `json:"first_name"`
	IsVerified         bool    `json:"is_verified"`
	Onboarded          bool    `json:"onboarded"`
	IsActive           bool    `json:"is_active"`
	IsAdmin            bool    `json:"is_admin"`
	CompanyID          *string `json:"company_id"`
	VerificationMethod string  `json:"verification_method"`
}

// AccessPayload mirrors the derived access flags.
type AccessPayload struct {
	CanBrowseFeed     bool `json:"can_browse_feed"`
	CanMessage        bool `json:"can_message"`
	CanPost           bool `json:"can_post"`
	NeedsVerification bool `json:"needs_verification"`
	NeedsOnboarding   bool `json:"needs_onboarding"`
}

// LoginResult bundles the JSON response from session issuing endpoints.
type LoginResult struct {
	AccessToken string        `json:"access_token"`
	ExpiresIn   int           `json:"expires_in"`
	User        UserPayload   `json:"user"`
	Access      AccessPayload `json:"access"`
}

// Login authenticates with email and password and returns the issued session.
func (e *Env) Login(email, password string) LoginResult {
	e.T.Helper()

	payload := map[string]string{
		"email":    email,
		"password": password,
	}

	w := e.Request(http.MethodPost, "/api/auth/login", payload, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())

	var result LoginResult
	DecodeInto(e.T, resp.Data, &result)
	require.NotEmpty(e.T, result.AccessToken)
	require.Greater(e.T, result.ExpiresIn, 0)
	require.Equal(e.T, email, result.User.Email)

	return result
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
