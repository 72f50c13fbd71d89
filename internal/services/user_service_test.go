package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/workpass/internal/auth"
	"github.com/charlesng35/workpass/internal/models"
)

func boolPtr(v bool) *bool { return &v }

func TestCompleteOnboardingRequiresVerification(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	user := s.seedUser(t, "dana@gmail.com")

	_, err := s.users.CompleteOnboarding(ctx, user.ID, OnboardingInput{City: "Porto"})
	require.ErrorIs(t, err, ErrUserNotVerified)

	require.NoError(t, s.db.Model(&models.User{}).Where("id = ?", user.ID).Update("is_verified", true).Error)

	_, err = s.users.CompleteOnboarding(ctx, user.ID, OnboardingInput{City: "  "})
	require.Error(t, err)

	updated, err := s.users.CompleteOnboarding(ctx, user.ID, OnboardingInput{
		City:          " Porto ",
		LastName:      "Silva",
		PersonalEmail: strPtr("Dana.Home@Gmail.com"),
	})
	require.NoError(t, err)
	require.True(t, updated.Onboarded)
	require.Equal(t, "Porto", updated.City)
	require.Equal(t, "Silva", updated.LastName)
	require.Equal(t, "dana.home@gmail.com", *updated.PersonalEmail)
	require.True(t, updated.Access().CanMessage)
}

func TestAdminUpdateTogglesVerification(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	admin := s.seedAdmin(t)
	user := s.seedUser(t, "dana@gmail.com")

	updated, err := s.users.AdminUpdate(ctx, admin.ID, user.ID, AdminUserPatch{
		IsVerified: boolPtr(true),
		Onboarded:  boolPtr(true),
		City:       strPtr("Madrid"),
	})
	require.NoError(t, err)
	require.True(t, updated.IsVerified)
	require.True(t, updated.Onboarded)
	require.Equal(t, models.VerificationManual, updated.VerificationMethod)
	require.NotNil(t, updated.VerifiedAt)

	_, err = s.users.AdminUpdate(ctx, admin.ID, user.ID, AdminUserPatch{IsVerified: boolPtr(false)})
	require.ErrorIs(t, err, ErrOnboardedRequiresVerified)

	updated, err = s.users.AdminUpdate(ctx, admin.ID, user.ID, AdminUserPatch{
		IsVerified: boolPtr(false),
		Onboarded:  boolPtr(false),
	})
	require.NoError(t, err)
	require.False(t, updated.IsVerified)
	require.Nil(t, updated.VerifiedAt)
	require.Equal(t, models.VerificationNone, updated.VerificationMethod)
	require.True(t, updated.Access().NeedsVerification)

	logs, total, err := s.audit.List(ctx, AuditListOptions{Filters: AuditFilters{Action: "user.admin_update", ActorID: admin.ID}})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, logs, 2)
}

func TestAdminUpdateRejectsOnboardingUnverified(t *testing.T) {
	s := newTestStack(t)
	admin := s.seedAdmin(t)
	user := s.seedUser(t, "dana@gmail.com")

	_, err := s.users.AdminUpdate(context.Background(), admin.ID, user.ID, AdminUserPatch{Onboarded: boolPtr(true)})
	require.ErrorIs(t, err, ErrOnboardedRequiresVerified)
	require.False(t, s.reloadUser(t, user.ID).Onboarded)
}

func TestAdminUpdateGuardsSelfLockout(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	admin := s.seedAdmin(t)

	_, err := s.users.AdminUpdate(ctx, admin.ID, admin.ID, AdminUserPatch{IsAdmin: boolPtr(false)})
	require.ErrorIs(t, err, ErrAdminSelfLockout)
	_, err = s.users.AdminUpdate(ctx, admin.ID, admin.ID, AdminUserPatch{IsActive: boolPtr(false)})
	require.ErrorIs(t, err, ErrAdminSelfLockout)
	require.ErrorIs(t, s.users.Delete(ctx, admin.ID, admin.ID), ErrAdminSelfLockout)

	updated, err := s.users.AdminUpdate(ctx, admin.ID, admin.ID, AdminUserPatch{FirstName: strPtr("Rooty")})
	require.NoError(t, err)
	require.Equal(t, "Rooty", updated.FirstName)
}

func TestAdminUpdateValidatesFirstName(t *testing.T) {
	s := newTestStack(t)
	admin := s.seedAdmin(t)
	user := s.seedUser(t, "dana@gmail.com")

	_, err := s.users.AdminUpdate(context.Background(), admin.ID, user.ID, AdminUserPatch{FirstName: strPtr("D")})
	require.ErrorIs(t, err, ErrInvalidFirstName)

	_, err = s.users.AdminUpdate(context.Background(), admin.ID, "missing", AdminUserPatch{})
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestDeleteUserCascades(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	admin := s.seedAdmin(t)
	user := s.seedUser(t, "dana@gmail.com")

	_, err := s.manual.Submit(ctx, user.ID, ManualRequestInput{CorporateEmail: "dana@acme.io", ProofDocument: strPtr("doc")})
	require.NoError(t, err)

	require.NoError(t, s.users.Delete(ctx, admin.ID, user.ID))
	require.ErrorIs(t, s.users.Delete(ctx, admin.ID, user.ID), ErrUserNotFound)

	var requests int64
	require.NoError(t, s.db.Model(&models.ManualVerificationRequest{}).Count(&requests).Error)
	require.Zero(t, requests)
	_, err = s.identities.FindByEmail(ctx, "dana@gmail.com")
	require.ErrorIs(t, err, auth.ErrIdentityNotFound)
}

func TestDeleteUserKeepsProfileWhenIdentityDeleteFails(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	admin := s.seedAdmin(t)
	user := s.seedUser(t, "dana@gmail.com")

	storeErr := errors.New("identity store offline")
	users, err := NewUserService(s.db, failingDeleteProvider{IdentityProvider: s.identities, err: storeErr}, s.audit)
	require.NoError(t, err)

	require.ErrorIs(t, users.Delete(ctx, admin.ID, user.ID), storeErr)

	s.reloadUser(t, user.ID)
	_, err = s.identities.FindByEmail(ctx, "dana@gmail.com")
	require.NoError(t, err)

	require.ErrorIs(t, users.Delete(ctx, admin.ID, "missing"), ErrUserNotFound)
}

func TestListUsersFilters(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	s.seedAdmin(t)
	s.seedUser(t, "dana@gmail.com")
	s.seedUser(t, "eli@gmail.com")

	users, total, err := s.users.List(ctx, ListUsersOptions{Verified: boolPtr(false)})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, users, 2)

	users, total, err = s.users.List(ctx, ListUsersOptions{Query: "ELI"})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "eli@gmail.com", users[0].Email)
}

func TestRecordLogin(t *testing.T) {
	s := newTestStack(t)
	user := s.seedUser(t, "dana@gmail.com")

	require.NoError(t, s.users.RecordLogin(context.Background(), user.ID))
	reloaded := s.reloadUser(t, user.ID)
	require.NotNil(t, reloaded.LastLoginAt)
	require.True(t, reloaded.LastLoginAt.Equal(s.clock.Now()))
}
