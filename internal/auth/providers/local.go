package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/workpass/internal/auth"
	"github.com/charlesng35/workpass/internal/database"
	"github.com/charlesng35/workpass/internal/models"
	"github.com/charlesng35/workpass/pkg/crypto"
	"github.com/charlesng35/workpass/pkg/emaildomain"
)

// LocalConfig defines tunable behaviour for the local provider.
type LocalConfig struct {
	LockoutThreshold int
	LockoutDuration  time.Duration
	Clock            func() time.Time
}

// LocalProvider stores bcrypt credentials in the primary database and locks
// identities after repeated failures.
type LocalProvider struct {
	db        *gorm.DB
	clock     func() time.Time
	threshold int
	duration  time.Duration
}

var _ auth.IdentityProvider = (*LocalProvider)(nil)

// NewLocalProvider builds a provider with sane defaults.
func NewLocalProvider(db *gorm.DB, cfg LocalConfig) (*LocalProvider, error) {
	if db == nil {
		return nil, errors.New("local provider: db is required")
	}

	threshold := cfg.LockoutThreshold
	if threshold <= 0 {
		threshold = 5
	}

	duration := cfg.LockoutDuration
	if duration <= 0 {
		duration = 15 * time.Minute
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &LocalProvider{
		db:        db,
		clock:     clock,
		threshold: threshold,
		duration:  duration,
	}, nil
}

// CreateIdentity implements auth.IdentityProvider.
func (p *LocalProvider) CreateIdentity(ctx context.Context, email, passwordHash string) (string, error) {
	email = emaildomain.NormalizeEmail(email)
	if email == "" {
		return "", errors.New("local provider: email is required")
	}
	if !crypto.IsPasswordHash(passwordHash) {
		return "", auth.ErrPasswordNotHashed
	}

	identity := models.AuthIdentity{Email: email, PasswordHash: passwordHash}
	if err := p.db.WithContext(ctx).Create(&identity).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return "", auth.ErrIdentityExists
		}
		return "", fmt.Errorf("local provider: create identity: %w", err)
	}
	return identity.ID, nil
}

// DeleteIdentity implements auth.IdentityProvider.
func (p *LocalProvider) DeleteIdentity(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("identity_id = ?", id).Delete(&models.PasswordResetToken{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.AuthIdentity{}).Error
	})
	if err != nil {
		return fmt.Errorf("local provider: delete identity: %w", err)
	}
	return nil
}

// ConfirmIdentity implements auth.IdentityProvider.
func (p *LocalProvider) ConfirmIdentity(ctx context.Context, id string) error {
	now := p.clock()
	res := p.db.WithContext(ctx).Model(&models.AuthIdentity{}).
		Where("id = ? AND confirmed_at IS NULL", id).
		Update("confirmed_at", now)
	if res.Error != nil {
		return fmt.Errorf("local provider: confirm identity: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := p.byID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Authenticate implements auth.IdentityProvider.
func (p *LocalProvider) Authenticate(ctx context.Context, email, password string) (string, error) {
	email = emaildomain.NormalizeEmail(email)
	if email == "" || password == "" {
		return "", auth.ErrInvalidCredentials
	}

	var identity models.AuthIdentity
	err := p.db.WithContext(ctx).Take(&identity, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", auth.ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("local provider: query identity: %w", err)
	}

	now := p.clock()
	if identity.LockedUntil != nil && identity.LockedUntil.After(now) {
		return "", auth.ErrAccountLocked
	}

	if !crypto.VerifyPassword(identity.PasswordHash, password) {
		return "", p.handleFailedAttempt(ctx, &identity, now)
	}

	if err := p.db.WithContext(ctx).Model(&identity).Updates(map[string]any{
		"failed_attempts": 0,
		"locked_until":    nil,
		"last_login_at":   now,
	}).Error; err != nil {
		return "", fmt.Errorf("local provider: update identity: %w", err)
	}

	return identity.ID, nil
}

func (p *LocalProvider) handleFailedAttempt(ctx context.Context, identity *models.AuthIdentity, now time.Time) error {
	if identity.LockedUntil != nil && !identity.LockedUntil.After(now) {
		identity.FailedAttempts = 0
	}
	identity.FailedAttempts++

	updates := map[string]any{
		"failed_attempts": identity.FailedAttempts,
		"locked_until":    nil,
	}

	locked := identity.FailedAttempts >= p.threshold
	if locked {
		updates["locked_until"] = now.Add(p.duration)
		updates["failed_attempts"] = 0
	}

	if err := p.db.WithContext(ctx).Model(identity).Updates(updates).Error; err != nil {
		return fmt.Errorf("local provider: update failed attempts: %w", err)
	}

	if locked {
		return auth.ErrAccountLocked
	}
	return auth.ErrInvalidCredentials
}

// SetPassword implements auth.IdentityProvider.
func (p *LocalProvider) SetPassword(ctx context.Context, id, passwordHash string) error {
	if !crypto.IsPasswordHash(passwordHash) {
		return auth.ErrPasswordNotHashed
	}
	res := p.db.WithContext(ctx).Model(&models.AuthIdentity{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"password_hash":   passwordHash,
			"failed_attempts": 0,
			"locked_until":    nil,
		})
	if res.Error != nil {
		return fmt.Errorf("local provider: set password: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return auth.ErrIdentityNotFound
	}
	return nil
}

// FindByEmail implements auth.IdentityProvider.
func (p *LocalProvider) FindByEmail(ctx context.Context, email string) (*models.AuthIdentity, error) {
	var identity models.AuthIdentity
	err := p.db.WithContext(ctx).Take(&identity, "email = ?", emaildomain.NormalizeEmail(email)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, auth.ErrIdentityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("local provider: find identity: %w", err)
	}
	return &identity, nil
}

func (p *LocalProvider) byID(ctx context.Context, id string) (*models.AuthIdentity, error) {
	var identity models.AuthIdentity
	err := p.db.WithContext(ctx).Take(&identity, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, auth.ErrIdentityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("local provider: load identity: %w", err)
	}
	return &identity, nil
}
