package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/workpass/internal/models"
	"github.com/charlesng35/workpass/internal/services"
	"github.com/charlesng35/workpass/pkg/logger"
)

const (
	defaultIntentRetention = 30 * 24 * time.Hour
	defaultAuditRetention  = 90 * 24 * time.Hour
	defaultTokenSpec       = "@every 15m"
	defaultIntentSpec      = "@daily"
	defaultAuditSpec       = "@daily"
)

// CounterPurger removes expired rate-limit counters.
type CounterPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Cleaner coordinates background maintenance: expired one-time codes and
// reset tokens, stale signup intents, expired rate-limit counters, and audit
// logs past retention.
type Cleaner struct {
	db       *gorm.DB
	intents  *services.SignupIntentService
	audit    *services.AuditService
	counters CounterPurger
	cron     *cron.Cron
	now      func() time.Time
	log      *zap.Logger

	intentRetention time.Duration
	auditRetention  time.Duration

	tokenSchedule  string
	intentSchedule string
	auditSchedule  string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithCounterPurger enables cleanup of database-backed rate-limit counters.
func WithCounterPurger(p CounterPurger) Option {
	return func(cleaner *Cleaner) {
		cleaner.counters = p
	}
}

// WithIntentRetention sets how long a staged signup intent is kept.
func WithIntentRetention(d time.Duration) Option {
	return func(cleaner *Cleaner) {
		if d > 0 {
			cleaner.intentRetention = d
		}
	}
}

// WithAuditRetention sets how long audit logs are kept.
func WithAuditRetention(d time.Duration) Option {
	return func(cleaner *Cleaner) {
		if d > 0 {
			cleaner.auditRetention = d
		}
	}
}

// WithTokenSchedule overrides the cron specification for code and token cleanup.
func WithTokenSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.tokenSchedule = spec
		}
	}
}

// WithIntentSchedule overrides the cron specification for intent cleanup.
func WithIntentSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.intentSchedule = spec
		}
	}
}

// WithAuditSchedule overrides the cron specification for audit retention.
func WithAuditSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.auditSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner. A nil dependency skips the matching job.
func NewCleaner(db *gorm.DB, intents *services.SignupIntentService, audit *services.AuditService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:              db,
		intents:         intents,
		audit:           audit,
		now:             time.Now,
		intentRetention: defaultIntentRetention,
		auditRetention:  defaultAuditRetention,
		tokenSchedule:   defaultTokenSpec,
		intentSchedule:  defaultIntentSpec,
		auditSchedule:   defaultAuditSpec,
		log:             logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the cleanup jobs and launches the scheduler.
func (c *Cleaner) Start() error {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
		on   bool
	}{
		{"tokens", c.tokenSchedule, c.cleanupTokens, c.db != nil},
		{"counters", c.tokenSchedule, c.cleanupCounters, c.counters != nil},
		{"intents", c.intentSchedule, c.cleanupIntents, c.intents != nil},
		{"audit", c.auditSchedule, c.cleanupAudit, c.audit != nil},
	}

	scheduled := 0
	for _, job := range jobs {
		if !job.on {
			continue
		}
		job := job
		if _, err := c.cron.AddFunc(job.spec, func() {
			if err := job.run(context.Background()); err != nil {
				c.log.Warn("maintenance job failed", zap.String("job", job.name), zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("schedule %s cleanup: %w", job.name, err)
		}
		scheduled++
	}

	if scheduled > 0 {
		c.cron.Start()
	}
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every configured cleanup sequentially. Used in tests and
// during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	if c.db != nil {
		errs = multierr.Append(errs, c.cleanupTokens(ctx))
	}
	if c.counters != nil {
		errs = multierr.Append(errs, c.cleanupCounters(ctx))
	}
	if c.intents != nil {
		errs = multierr.Append(errs, c.cleanupIntents(ctx))
	}
	if c.audit != nil {
		errs = multierr.Append(errs, c.cleanupAudit(ctx))
	}
	return errs
}

func (c *Cleaner) cleanupTokens(ctx context.Context) error {
	stats, err := CleanupTokens(ctx, c.db, c.now())
	if err != nil {
		return err
	}
	if stats.OneTimeCodes > 0 || stats.PasswordResets > 0 {
		c.log.Debug("expired tokens removed",
			zap.Int64("one_time_codes", stats.OneTimeCodes),
			zap.Int64("password_resets", stats.PasswordResets),
		)
	}
	return nil
}

func (c *Cleaner) cleanupCounters(ctx context.Context) error {
	if _, err := c.counters.PurgeExpired(ctx, c.now()); err != nil {
		return fmt.Errorf("cleanup counters: %w", err)
	}
	return nil
}

func (c *Cleaner) cleanupIntents(ctx context.Context) error {
	removed, err := c.intents.PurgeOlderThan(ctx, c.now().Add(-c.intentRetention))
	if err != nil {
		return err
	}
	if removed > 0 {
		c.log.Info("stale signup intents removed", zap.Int64("count", removed))
	}
	return nil
}

func (c *Cleaner) cleanupAudit(ctx context.Context) error {
	_, err := c.audit.CleanupOlderThan(ctx, c.now().Add(-c.auditRetention))
	return err
}

// TokenCleanupStats captures the number of records removed per table.
type TokenCleanupStats struct {
	OneTimeCodes   int64
	PasswordResets int64
}

// CleanupTokens removes expired one-time codes and expired or consumed
// password reset tokens.
func CleanupTokens(ctx context.Context, db *gorm.DB, now time.Time) (TokenCleanupStats, error) {
	if db == nil {
		return TokenCleanupStats{}, errors.New("cleanup tokens: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	stats := TokenCleanupStats{}

	if result := db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&models.OneTimeCode{}); result.Error != nil {
		return stats, fmt.Errorf("cleanup tokens: one-time codes: %w", result.Error)
	} else {
		stats.OneTimeCodes = result.RowsAffected
	}

	if result := db.WithContext(ctx).
		Where("expires_at < ? OR used_at IS NOT NULL", now).
		Delete(&models.PasswordResetToken{}); result.Error != nil {
		return stats, fmt.Errorf("cleanup tokens: password reset tokens: %w", result.Error)
	} else {
		stats.PasswordResets = result.RowsAffected
	}

	return stats, nil
}
