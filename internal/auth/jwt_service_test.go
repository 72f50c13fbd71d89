package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func fixedClock(at *time.Time) func() time.Time {
	return func() time.Time { return *at }
}

func TestNewJWTServiceRequiresSecret(t *testing.T) {
	_, err := NewJWTService(JWTConfig{})
	require.EqualError(t, err, "jwt: secret must be provided")
}

func TestSessionTokenRoundTrip(t *testing.T) {
	current := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc, err := NewJWTService(JWTConfig{
		Secret:         "member-session-secret",
		Issuer:         "workpass",
		AccessTokenTTL: time.Hour,
		Clock:          fixedClock(&current),
	})
	require.NoError(t, err)
	require.Equal(t, time.Hour, svc.TTL())

	first, err := svc.GenerateAccessToken(AccessTokenInput{UserID: "member-1", IsAdmin: true})
	require.NoError(t, err)
	second, err := svc.GenerateAccessToken(AccessTokenInput{UserID: "member-1", IsAdmin: true})
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(first)
	require.NoError(t, err)
	require.Equal(t, "member-1", claims.UserID)
	require.Equal(t, "member-1", claims.Subject)
	require.True(t, claims.IsAdmin)
	require.Equal(t, jwt.ClaimStrings{APIAudience}, claims.Audience)
	require.True(t, claims.ExpiresAt.Time.Equal(current.Add(time.Hour)))

	other, err := svc.ValidateAccessToken(second)
	require.NoError(t, err)
	require.NotEqual(t, claims.ID, other.ID)
}

func TestDefaultTTL(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "member-session-secret"})
	require.NoError(t, err)
	require.Equal(t, DefaultAccessTokenTTL, svc.TTL())
}

func TestValidateRejectsForeignSignature(t *testing.T) {
	current := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	issuer, err := NewJWTService(JWTConfig{Secret: "issuer-secret", Clock: fixedClock(&current)})
	require.NoError(t, err)
	token, err := issuer.GenerateAccessToken(AccessTokenInput{UserID: "member-1"})
	require.NoError(t, err)

	verifier, err := NewJWTService(JWTConfig{Secret: "other-secret", Clock: fixedClock(&current)})
	require.NoError(t, err)
	_, err = verifier.ValidateAccessToken(token)
	require.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestValidateHonoursExpiryWithSkew(t *testing.T) {
	current := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc, err := NewJWTService(JWTConfig{
		Secret:         "member-session-secret",
		AccessTokenTTL: time.Minute,
		Clock:          fixedClock(&current),
	})
	require.NoError(t, err)

	token, err := svc.GenerateAccessToken(AccessTokenInput{UserID: "member-1"})
	require.NoError(t, err)

	current = current.Add(time.Minute + 2*time.Second)
	_, err = svc.ValidateAccessToken(token)
	require.NoError(t, err)

	current = current.Add(time.Minute)
	_, err = svc.ValidateAccessToken(token)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestValidateRejectsIssuerMismatch(t *testing.T) {
	issuer, err := NewJWTService(JWTConfig{Secret: "shared", Issuer: "someone-else"})
	require.NoError(t, err)
	token, err := issuer.GenerateAccessToken(AccessTokenInput{UserID: "member-1"})
	require.NoError(t, err)

	verifier, err := NewJWTService(JWTConfig{Secret: "shared", Issuer: "workpass"})
	require.NoError(t, err)
	_, err = verifier.ValidateAccessToken(token)
	require.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
}

func TestValidateRejectsTokensWithoutAudienceOrSubject(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "shared"})
	require.NoError(t, err)

	exp := jwt.NewNumericDate(time.Now().Add(time.Minute))
	noAudience, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID:           "member-1",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "member-1", ExpiresAt: exp},
	}).SignedString([]byte("shared"))
	require.NoError(t, err)
	_, err = svc.ValidateAccessToken(noAudience)
	require.ErrorIs(t, err, jwt.ErrTokenInvalidAudience)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Audience: jwt.ClaimStrings{APIAudience}, ExpiresAt: exp},
	}).SignedString([]byte("shared"))
	require.NoError(t, err)
	_, err = svc.ValidateAccessToken(noSubject)
	require.ErrorIs(t, err, ErrMissingSubject)
}

func TestGenerateAccessTokenRequiresUser(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "member-session-secret"})
	require.NoError(t, err)
	_, err = svc.GenerateAccessToken(AccessTokenInput{})
	require.Error(t, err)
}
