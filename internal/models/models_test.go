package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBaseModelBeforeCreateGeneratesID(t *testing.T) {
	var base BaseModel
	require.NoError(t, base.BeforeCreate(nil))
	require.NotEmpty(t, base.ID)

	preset := BaseModel{ID: "fixed"}
	require.NoError(t, preset.BeforeCreate(nil))
	require.Equal(t, "fixed", preset.ID)
}

func TestEmbeddedModelsUseBaseBeforeCreate(t *testing.T) {
	cases := []struct {
		name  string
		model func() *BaseModel
	}{
		{"company", func() *BaseModel { return &(&Company{}).BaseModel }},
		{"manual request", func() *BaseModel { return &(&ManualVerificationRequest{}).BaseModel }},
		{"waitlist entry", func() *BaseModel { return &(&WaitlistEntry{}).BaseModel }},
		{"auth identity", func() *BaseModel { return &(&AuthIdentity{}).BaseModel }},
		{"password reset token", func() *BaseModel { return &(&PasswordResetToken{}).BaseModel }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			base := tc.model()
			require.NoError(t, base.BeforeCreate(nil))
			require.NotEmpty(t, base.ID)
		})
	}
}

func TestUserBeforeCreateDefaults(t *testing.T) {
	u := &User{Email: "jane@acme.io"}
	require.NoError(t, u.BeforeCreate(nil))
	require.NotEmpty(t, u.ID)
	require.Equal(t, VerificationNone, u.VerificationMethod)
}

func TestUserOnboardedRequiresVerified(t *testing.T) {
	u := &User{Onboarded: true}
	require.ErrorIs(t, u.BeforeSave(nil), ErrOnboardedUnverified)

	u.IsVerified = true
	require.NoError(t, u.BeforeSave(nil))
}

func TestUserAccess(t *testing.T) {
	cases := []struct {
		name string
		user *User
		want AccessState
	}{
		{"nil", nil, AccessState{}},
		{"inactive", &User{IsVerified: true, Onboarded: true}, AccessState{}},
		{"unverified", &User{IsActive: true}, AccessState{NeedsVerification: true}},
		{"verified", &User{IsActive: true, IsVerified: true}, AccessState{NeedsOnboarding: true}},
		{"full", &User{IsActive: true, IsVerified: true, Onboarded: true}, AccessState{CanBrowseFeed: true, CanMessage: true, CanPost: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.user.Access())
		})
	}
}

func TestOneTimeCodeExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	code := &OneTimeCode{ExpiresAt: now.Add(time.Minute)}

	require.False(t, code.Expired(now))
	require.True(t, code.Expired(now.Add(time.Minute)))
	require.True(t, code.Expired(now.Add(2*time.Minute)))
}

func TestReviewStatus(t *testing.T) {
	require.False(t, ReviewPending.Terminal())
	require.True(t, ReviewApproved.Terminal())
	require.True(t, ReviewRejected.Terminal())
	require.True(t, ReviewPending.Valid())
	require.False(t, ReviewStatus("archived").Valid())
}
