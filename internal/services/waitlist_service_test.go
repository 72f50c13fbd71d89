package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/workpass/internal/auth"
	"github.com/charlesng35/workpass/internal/events"
	"github.com/charlesng35/workpass/internal/models"
	"github.com/charlesng35/workpass/pkg/crypto"
)

func waitlistInput(email string) WaitlistInput {
	return WaitlistInput{
		CorporateEmail: email,
		PersonalEmail:  "dana.personal@gmail.com",
		LinkedInURL:    strPtr("https://linkedin.com/in/dana"),
		City:           "Lisbon",
	}
}

func TestWaitlistSubmit(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	_, err := s.waitlist.Submit(ctx, waitlistInput("dana@gmail.com"))
	require.ErrorIs(t, err, ErrNotCorporateEmail)

	id, err := s.waitlist.Submit(ctx, waitlistInput("Dana@Acme.io"))
	require.NoError(t, err)

	entry, err := s.waitlist.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "dana@acme.io", entry.CorporateEmail)
	require.Equal(t, models.ReviewPending, entry.Status)

	_, err = s.waitlist.Submit(ctx, waitlistInput("dana@acme.io"))
	require.ErrorIs(t, err, ErrWaitlistPending)

	sent := s.notifier.last(t)
	require.Equal(t, NotifyWaitlistReceived, sent.Kind)
	require.Equal(t, "dana.personal@gmail.com", sent.To)
	require.Contains(t, s.publisher.types(), events.TypeWaitlistJoined)

	_, err = s.waitlist.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrWaitlistNotFound)
}

func TestWaitlistApproveRequiresIntent(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	admin := s.seedAdmin(t)

	id, err := s.waitlist.Submit(ctx, waitlistInput("dana@acme.io"))
	require.NoError(t, err)

	_, err = s.waitlist.Approve(ctx, admin.ID, id, "")
	require.ErrorIs(t, err, ErrNoSignupIntent)

	entry, err := s.waitlist.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, models.ReviewPending, entry.Status)

	var companies int64
	require.NoError(t, s.db.Model(&models.Company{}).Count(&companies).Error)
	require.Zero(t, companies)
}

func TestWaitlistApproveProvisionsAccount(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	admin := s.seedAdmin(t)

	_, err := s.intents.Stage(ctx, "dana@acme.io", "Dana", "s3cret-pass")
	require.NoError(t, err)
	require.NoError(t, s.otp.Issue(ctx, "dana@acme.io"))

	id, err := s.waitlist.Submit(ctx, waitlistInput("dana@acme.io"))
	require.NoError(t, err)

	user, err := s.waitlist.Approve(ctx, admin.ID, id, "verified on call")
	require.NoError(t, err)
	require.Equal(t, "dana@acme.io", user.Email)
	require.Equal(t, "Dana", user.FirstName)
	require.Equal(t, "Lisbon", user.City)
	require.True(t, user.IsVerified)
	require.True(t, user.Onboarded)
	require.Equal(t, models.VerificationManual, user.VerificationMethod)
	require.Equal(t, "dana.personal@gmail.com", *user.PersonalEmail)
	require.NotNil(t, user.CompanyID)
	require.True(t, user.Access().CanPost)

	identityID, err := s.identities.Authenticate(ctx, "dana@acme.io", "s3cret-pass")
	require.NoError(t, err)
	require.Equal(t, user.ID, identityID)

	entry, err := s.waitlist.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, models.ReviewApproved, entry.Status)
	require.Equal(t, user.ID, *entry.ProvisionedUserID)
	require.Nil(t, entry.PendingEmail)

	_, err = s.intents.Get(ctx, "dana@acme.io")
	require.ErrorIs(t, err, ErrNoSignupIntent)
	var codes int64
	require.NoError(t, s.db.Model(&models.OneTimeCode{}).Count(&codes).Error)
	require.Zero(t, codes)

	sent := s.notifier.last(t)
	require.Equal(t, NotifyWaitlistApproved, sent.Kind)
	require.Equal(t, "dana.personal@gmail.com", sent.To)
	require.Contains(t, s.publisher.types(), events.TypeWaitlistApproved)

	_, err = s.waitlist.Approve(ctx, admin.ID, id, "")
	require.ErrorIs(t, err, ErrAlreadyTerminal)
}

func TestWaitlistApproveProfileFailureLeavesNoIdentity(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	admin := s.seedAdmin(t)

	_, err := s.intents.Stage(ctx, "dana@acme.io", "Dana", "s3cret-pass")
	require.NoError(t, err)
	id, err := s.waitlist.Submit(ctx, waitlistInput("dana@acme.io"))
	require.NoError(t, err)

	failUserInserts(t, s.db)

	_, err = s.waitlist.Approve(ctx, admin.ID, id, "")
	require.ErrorIs(t, err, ErrProvisioningFailed)

	_, err = s.identities.FindByEmail(ctx, "dana@acme.io")
	require.ErrorIs(t, err, auth.ErrIdentityNotFound)
	var identities int64
	require.NoError(t, s.db.Model(&models.AuthIdentity{}).Count(&identities).Error)
	require.Equal(t, int64(1), identities)

	entry, err := s.waitlist.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, models.ReviewPending, entry.Status)

	_, err = s.intents.Get(ctx, "dana@acme.io")
	require.NoError(t, err)
	require.Zero(t, s.notifier.count(NotifyWaitlistApproved))
}

func TestWaitlistApproveLosingRaceRollsBack(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	admin := s.seedAdmin(t)

	_, err := s.intents.Stage(ctx, "dana@acme.io", "Dana", "s3cret-pass")
	require.NoError(t, err)
	id, err := s.waitlist.Submit(ctx, waitlistInput("dana@acme.io"))
	require.NoError(t, err)

	fired := false
	require.NoError(t, s.db.Callback().Create().Before("gorm:create").Register("test:concurrent_reject", func(tx *gorm.DB) {
		if fired || tx.Statement.Table != "users" {
			return
		}
		fired = true
		tx.Session(&gorm.Session{NewDB: true}).Exec(
			"UPDATE waitlist_entries SET status = ?, pending_email = NULL WHERE id = ?",
			models.ReviewRejected, id,
		)
	}))

	_, err = s.waitlist.Approve(ctx, admin.ID, id, "")
	require.ErrorIs(t, err, ErrAlreadyTerminal)
	require.True(t, fired)

	var users int64
	require.NoError(t, s.db.Model(&models.User{}).Where("email = ?", "dana@acme.io").Count(&users).Error)
	require.Zero(t, users)
	_, err = s.identities.FindByEmail(ctx, "dana@acme.io")
	require.ErrorIs(t, err, auth.ErrIdentityNotFound)

	_, err = s.intents.Get(ctx, "dana@acme.io")
	require.NoError(t, err)
	require.Zero(t, s.notifier.count(NotifyWaitlistApproved))
}

func TestWaitlistApproveExistingAccountKeepsPending(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	admin := s.seedAdmin(t)

	hash, err := crypto.HashPassword("another-pass")
	require.NoError(t, err)
	_, err = s.identities.CreateIdentity(ctx, "dana@acme.io", hash)
	require.NoError(t, err)

	_, err = s.intents.Stage(ctx, "dana@acme.io", "Dana", "s3cret-pass")
	require.NoError(t, err)
	id, err := s.waitlist.Submit(ctx, waitlistInput("dana@acme.io"))
	require.NoError(t, err)

	_, err = s.waitlist.Approve(ctx, admin.ID, id, "")
	require.ErrorIs(t, err, auth.ErrIdentityExists)

	entry, err := s.waitlist.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, models.ReviewPending, entry.Status)
}

func TestWaitlistReject(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	admin := s.seedAdmin(t)

	id, err := s.waitlist.Submit(ctx, waitlistInput("dana@acme.io"))
	require.NoError(t, err)

	s.clock.Advance(time.Hour)
	require.NoError(t, s.waitlist.Reject(ctx, admin.ID, id, "not eligible"))
	require.ErrorIs(t, s.waitlist.Reject(ctx, admin.ID, id, ""), ErrAlreadyTerminal)

	entry, err := s.waitlist.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, models.ReviewRejected, entry.Status)
	require.Equal(t, "not eligible", entry.Notes)
	require.True(t, entry.ReviewedAt.Equal(s.clock.Now()))

	sent := s.notifier.last(t)
	require.Equal(t, NotifyWaitlistRejected, sent.Kind)
	require.Contains(t, s.publisher.types(), events.TypeWaitlistRejected)

	again, err := s.waitlist.Submit(ctx, waitlistInput("dana@acme.io"))
	require.NoError(t, err)
	require.NotEqual(t, id, again)

	pending, total, err := s.waitlist.List(ctx, ReviewListOptions{Status: models.ReviewPending})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, again, pending[0].ID)
}
