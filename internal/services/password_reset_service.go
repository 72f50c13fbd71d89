package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/workpass/internal/auth"
	"github.com/charlesng35/workpass/internal/models"
	"github.com/charlesng35/workpass/pkg/crypto"
	apperrors "github.com/charlesng35/workpass/pkg/errors"
	"github.com/charlesng35/workpass/pkg/logger"
)

const (
	defaultResetTokenTTL   = time.Hour
	defaultResetTokenBytes = 32
)

// ErrResetTokenInvalid covers unknown, expired and already used reset tokens.
var ErrResetTokenInvalid = apperrors.New("RESET_TOKEN_INVALID", "The reset link is invalid or has expired", http.StatusBadRequest)

// PasswordResetOption customises the PasswordResetService.
type PasswordResetOption func(*PasswordResetService)

// WithResetTokenTTL overrides the token lifetime.
func WithResetTokenTTL(ttl time.Duration) PasswordResetOption {
	return func(s *PasswordResetService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithResetClock injects a custom time source.
func WithResetClock(now func() time.Time) PasswordResetOption {
	return func(s *PasswordResetService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithResetAudit records confirmed resets.
func WithResetAudit(audit *AuditService) PasswordResetOption {
	return func(s *PasswordResetService) {
		s.audit = audit
	}
}

// PasswordResetService issues and redeems single-use password reset tokens.
// Only a SHA-256 digest of each token is stored.
type PasswordResetService struct {
	db         *gorm.DB
	identities auth.IdentityProvider
	notifier   Notifier
	audit      *AuditService
	ttl        time.Duration
	now        func() time.Time
	log        *zap.Logger
}

// NewPasswordResetService constructs a PasswordResetService.
func NewPasswordResetService(db *gorm.DB, identities auth.IdentityProvider, notifier Notifier, opts ...PasswordResetOption) (*PasswordResetService, error) {
	if db == nil {
		return nil, errors.New("password reset service: db is required")
	}
	if identities == nil {
		return nil, errors.New("password reset service: identity provider is required")
	}

	svc := &PasswordResetService{
		db:         db,
		identities: identities,
		notifier:   notifier,
		ttl:        defaultResetTokenTTL,
		now:        time.Now,
		log:        logger.WithModule("password_reset"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Request mails a reset link when email belongs to an identity. The result
// is the same whether or not the email is known; only storage failures are
// returned.
func (s *PasswordResetService) Request(ctx context.Context, email string) error {
	ctx = ensureContext(ctx)

	identity, err := s.identities.FindByEmail(ctx, email)
	if errors.Is(err, auth.ErrIdentityNotFound) {
		s.log.Debug("password reset for unknown email", logger.Email("email", email))
		return nil
	}
	if err != nil {
		return fmt.Errorf("password reset service: lookup identity: %w", err)
	}

	token, err := crypto.GenerateToken(defaultResetTokenBytes)
	if err != nil {
		return fmt.Errorf("password reset service: generate token: %w", err)
	}

	record := models.PasswordResetToken{
		IdentityID: identity.ID,
		TokenHash:  crypto.HashToken(token),
		ExpiresAt:  s.now().Add(s.ttl),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("password reset service: store token: %w", err)
	}

	notifyBestEffort(ctx, s.notifier, s.log, NotifyPasswordReset, identity.Email, map[string]string{
		"token":       token,
		"ttl_minutes": strconv.Itoa(int(s.ttl / time.Minute)),
	})
	return nil
}

// Confirm sets a new password for the identity owning token and marks the
// token used.
func (s *PasswordResetService) Confirm(ctx context.Context, token, newPassword string) error {
	ctx = ensureContext(ctx)

	token = strings.TrimSpace(token)
	if token == "" {
		return ErrResetTokenInvalid
	}
	if len(newPassword) < minPasswordLength {
		return ErrWeakPassword
	}

	var record models.PasswordResetToken
	err := s.db.WithContext(ctx).Where("token_hash = ?", crypto.HashToken(token)).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrResetTokenInvalid
	}
	if err != nil {
		return fmt.Errorf("password reset service: load token: %w", err)
	}

	now := s.now()
	if record.UsedAt != nil || !now.Before(record.ExpiresAt) {
		return ErrResetTokenInvalid
	}

	hash, err := crypto.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("password reset service: hash password: %w", err)
	}

	claimed := s.db.WithContext(ctx).Model(&models.PasswordResetToken{}).
		Where("id = ? AND used_at IS NULL", record.ID).
		Update("used_at", now)
	if claimed.Error != nil {
		return fmt.Errorf("password reset service: mark used: %w", claimed.Error)
	}
	if claimed.RowsAffected == 0 {
		return ErrResetTokenInvalid
	}

	if err := s.identities.SetPassword(ctx, record.IdentityID, hash); err != nil {
		return err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		ActorID:    &record.IdentityID,
		Action:     "auth.password_reset",
		Resource:   "user",
		ResourceID: record.IdentityID,
		Result:     AuditResultSuccess,
	})
	return nil
}

// PurgeExpired deletes tokens that are expired or already used.
func (s *PasswordResetService) PurgeExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ensureContext(ctx)).
		Where("expires_at <= ? OR used_at IS NOT NULL", s.now()).
		Delete(&models.PasswordResetToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("password reset service: purge: %w", result.Error)
	}
	return result.RowsAffected, nil
}
