package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/workpass/internal/cache"
	testutil "github.com/charlesng35/workpass/internal/database/testutil"
	"github.com/charlesng35/workpass/internal/models"
	"github.com/charlesng35/workpass/internal/services"
)

func TestCleanupTokens(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2025, 2, 10, 15, 0, 0, 0, time.UTC)
	used := now.Add(-time.Minute)

	codes := []models.OneTimeCode{
		{Email: "expired@acme.io", CodeHash: "a", ExpiresAt: now.Add(-time.Minute)},
		{Email: "live@acme.io", CodeHash: "b", ExpiresAt: now.Add(5 * time.Minute)},
	}
	require.NoError(t, db.Create(&codes).Error)

	resets := []models.PasswordResetToken{
		{IdentityID: "identity-1", TokenHash: "expired", ExpiresAt: now.Add(-time.Hour)},
		{IdentityID: "identity-2", TokenHash: "used", ExpiresAt: now.Add(time.Hour), UsedAt: &used},
		{IdentityID: "identity-3", TokenHash: "active", ExpiresAt: now.Add(time.Hour)},
	}
	require.NoError(t, db.Create(&resets).Error)

	stats, err := CleanupTokens(context.Background(), db, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.OneTimeCodes)
	require.Equal(t, int64(2), stats.PasswordResets)

	var code models.OneTimeCode
	require.NoError(t, db.First(&code).Error)
	require.Equal(t, "live@acme.io", code.Email)

	var reset models.PasswordResetToken
	require.NoError(t, db.First(&reset).Error)
	require.Equal(t, "active", reset.TokenHash)

	_, err = CleanupTokens(context.Background(), nil, now)
	require.Error(t, err)
}

func TestCleanerRunOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2025, 2, 10, 15, 0, 0, 0, time.UTC)

	intents, err := services.NewSignupIntentService(db)
	require.NoError(t, err)
	audit, err := services.NewAuditService(db)
	require.NoError(t, err)
	counters := cache.NewDatabaseStore(db)

	require.NoError(t, db.Create(&models.SignupIntent{
		Email:        "stale@acme.io",
		FirstName:    "Stale",
		PasswordHash: "hash",
		CreatedAt:    now.Add(-40 * 24 * time.Hour),
	}).Error)
	require.NoError(t, db.Create(&models.SignupIntent{
		Email:        "fresh@acme.io",
		FirstName:    "Fresh",
		PasswordHash: "hash",
		CreatedAt:    now.Add(-time.Hour),
	}).Error)
	require.NoError(t, db.Create(&models.AuditLog{
		Action:    "auth.login",
		Result:    services.AuditResultSuccess,
		CreatedAt: now.Add(-100 * 24 * time.Hour),
	}).Error)
	require.NoError(t, db.Create(&models.AuditLog{
		Action:    "auth.login",
		Result:    services.AuditResultSuccess,
		CreatedAt: now.Add(-time.Hour),
	}).Error)
	require.NoError(t, db.Create(&models.CacheEntry{
		Key:       "ratelimit:otp:1.2.3.4",
		Counter:   3,
		ExpiresAt: now.Add(-time.Second),
	}).Error)
	require.NoError(t, db.Create(&models.OneTimeCode{
		Email:     "expired@acme.io",
		CodeHash:  "x",
		ExpiresAt: now.Add(-time.Second),
	}).Error)

	cleaner := NewCleaner(db, intents, audit,
		WithNow(func() time.Time { return now }),
		WithCounterPurger(counters),
	)
	require.NoError(t, cleaner.RunOnce(context.Background()))

	assertCount := func(model any, expected int64) {
		var count int64
		require.NoError(t, db.Model(model).Count(&count).Error)
		require.Equal(t, expected, count)
	}

	assertCount(&models.SignupIntent{}, 1)
	assertCount(&models.AuditLog{}, 1)
	assertCount(&models.CacheEntry{}, 0)
	assertCount(&models.OneTimeCode{}, 0)
}

type failingPurger struct{}

func (failingPurger) PurgeExpired(context.Context, time.Time) (int64, error) {
	return 0, errors.New("boom")
}

func TestCleanerRunOnceAggregatesErrors(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	intents, err := services.NewSignupIntentService(db)
	require.NoError(t, err)

	cleaner := NewCleaner(db, intents, nil, WithCounterPurger(failingPurger{}))
	err = cleaner.RunOnce(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "cleanup counters")
}

func TestCleanerStartSchedulesJobs(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	intents, err := services.NewSignupIntentService(db)
	require.NoError(t, err)
	audit, err := services.NewAuditService(db)
	require.NoError(t, err)

	scheduler := cron.New()
	cleaner := NewCleaner(db, intents, audit,
		WithCron(scheduler),
		WithCounterPurger(cache.NewDatabaseStore(db)),
		WithTokenSchedule("@every 1h"),
	)
	require.NoError(t, cleaner.Start())
	t.Cleanup(func() { <-cleaner.Stop().Done() })

	require.Len(t, scheduler.Entries(), 4)
}

func TestCleanerStartRejectsBadSchedule(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	cleaner := NewCleaner(db, nil, nil, WithCron(cron.New()), WithTokenSchedule("not a schedule"))
	require.Error(t, cleaner.Start())
}
