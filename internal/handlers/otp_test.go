package handlers_test

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/workpass/internal/handlers/testutil"
	"github.com/charlesng35/workpass/internal/models"
	"github.com/charlesng35/workpass/internal/services"
)

func TestOTPHandler_RequestCooldown(t *testing.T) {
	env := testutil.NewEnv(t)

	first := env.Request(http.MethodPost, "/api/otp/request", map[string]string{"email": "kim@acme.io"}, "")
	require.Equal(t, http.StatusAccepted, first.Code, first.Body.String())
	require.Equal(t, 1, env.Notifier.Count(services.NotifyOTPCode))

	second := env.Request(http.MethodPost, "/api/otp/request", map[string]string{"email": "KIM@acme.io"}, "")
	require.Equal(t, http.StatusTooManyRequests, second.Code, second.Body.String())

	resp := testutil.DecodeResponse(t, second)
	require.Equal(t, "OTP_COOLDOWN_ACTIVE", resp.Error.Code)
	require.Contains(t, resp.Error.Details, "retry_after_seconds")

	retryAfter, err := strconv.Atoi(second.Header().Get("Retry-After"))
	require.NoError(t, err)
	require.Greater(t, retryAfter, 0)
	require.LessOrEqual(t, retryAfter, 60)
	require.Equal(t, 1, env.Notifier.Count(services.NotifyOTPCode))
}

func TestOTPHandler_RequestRejectsPublicDomain(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPost, "/api/otp/request", map[string]string{"email": "kim@outlook.com"}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "NOT_CORPORATE_EMAIL", testutil.DecodeResponse(t, w).Error.Code)

	w = env.Request(http.MethodPost, "/api/otp/request", map[string]string{"email": "not-an-email"}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOTPHandler_VerifyUpgradesMember(t *testing.T) {
	env := testutil.NewEnv(t)
	member := env.CreateMember("kim@gmail.com", "correct-horse", testutil.MemberOptions{})
	token := env.Login(member.Email, "correct-horse").AccessToken

	unauthenticated := env.Request(http.MethodPost, "/api/otp/verify", map[string]string{
		"email": "kim@acme.io",
		"code":  testutil.Code,
	}, "")
	require.Equal(t, http.StatusUnauthorized, unauthenticated.Code)

	missing := env.Request(http.MethodPost, "/api/otp/verify", map[string]string{
		"email": "kim@acme.io",
		"code":  testutil.Code,
	}, token)
	require.Equal(t, http.StatusNotFound, missing.Code, missing.Body.String())
	require.Equal(t, "OTP_INVALID_OR_EXPIRED", testutil.DecodeResponse(t, missing).Error.Code)

	w := env.Request(http.MethodPost, "/api/otp/request", map[string]string{"email": "kim@acme.io"}, "")
	require.Equal(t, http.StatusAccepted, w.Code)

	w = env.Request(http.MethodPost, "/api/otp/verify", map[string]string{
		"email": "kim@acme.io",
		"code":  testutil.Code,
	}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var payload struct {
		User   testutil.UserPayload   `json:"user"`
		Access testutil.AccessPayload `json:"access"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &payload)
	require.Equal(t, member.ID, payload.User.ID)
	require.True(t, payload.User.IsVerified)
	require.True(t, payload.User.Onboarded)
	require.Equal(t, string(models.VerificationOTP), payload.User.VerificationMethod)
	require.True(t, payload.Access.CanBrowseFeed)

	var company models.Company
	require.NoError(t, env.DB.First(&company, "domain = ?", "acme.io").Error)
	require.Equal(t, company.ID, *payload.User.CompanyID)

	replay := env.Request(http.MethodPost, "/api/otp/verify", map[string]string{
		"email": "kim@acme.io",
		"code":  testutil.Code,
	}, token)
	require.Equal(t, http.StatusNotFound, replay.Code)
}

func TestOTPHandler_VerifyValidatesCodeShape(t *testing.T) {
	env := testutil.NewEnv(t)
	member := env.CreateMember("kim@gmail.com", "correct-horse", testutil.MemberOptions{})
	token := env.Login(member.Email, "correct-horse").AccessToken

	for _, code := range []string{"12345", "abcdef", ""} {
		w := env.Request(http.MethodPost, "/api/otp/verify", map[string]string{
			"email": "kim@acme.io",
			"code":  code,
		}, token)
		require.Equal(t, http.StatusBadRequest, w.Code, "code %q", code)
	}
}
