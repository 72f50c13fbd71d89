package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/workpass/internal/auth"
	"github.com/charlesng35/workpass/internal/events"
	"github.com/charlesng35/workpass/internal/models"
	"github.com/charlesng35/workpass/pkg/emaildomain"
	apperrors "github.com/charlesng35/workpass/pkg/errors"
	"github.com/charlesng35/workpass/pkg/logger"
	"github.com/charlesng35/workpass/pkg/metrics"
)

// ErrProvisioningFailed is returned when the user row could not be created
// after the identity was. The identity has been removed by then.
var ErrProvisioningFailed = apperrors.New("PROVISIONING_FAILED", "Account could not be created", http.StatusInternalServerError)

// ProvisionInput describes the account to create.
type ProvisionInput struct {
	Email         string
	PasswordHash  string
	FirstName     string
	LastName      string
	City          string
	PersonalEmail *string
	LinkedInURL   *string
	CompanyID     *string
	Verified      bool
	Onboarded     bool
	Method        models.VerificationMethod
	IsAdmin       bool
	// Source labels metrics and events: signup, waitlist, register or bootstrap.
	Source string
}

// Provisioner creates an auth identity and its user row as one unit. When
// the user row fails the identity is deleted again so no login can exist
// without a profile.
type Provisioner struct {
	db         *gorm.DB
	identities auth.IdentityProvider
	publisher  events.Publisher
	now        func() time.Time
	log        *zap.Logger
}

// ProvisionerOption customises the Provisioner.
type ProvisionerOption func(*Provisioner)

// WithProvisionerPublisher emits user.provisioned events.
func WithProvisionerPublisher(publisher events.Publisher) ProvisionerOption {
	return func(p *Provisioner) {
		p.publisher = publisher
	}
}

// WithProvisionerClock overrides the clock used for verified_at.
func WithProvisionerClock(now func() time.Time) ProvisionerOption {
	return func(p *Provisioner) {
		if now != nil {
			p.now = now
		}
	}
}

// NewProvisioner constructs a Provisioner.
func NewProvisioner(db *gorm.DB, identities auth.IdentityProvider, opts ...ProvisionerOption) (*Provisioner, error) {
	if db == nil {
		return nil, errors.New("provisioner: db is required")
	}
	if identities == nil {
		return nil, errors.New("provisioner: identity provider is required")
	}

	p := &Provisioner{
		db:         db,
		identities: identities,
		now:        time.Now,
		log:        logger.WithModule("provisioner"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Provision creates the identity, then the user row sharing its ID.
func (p *Provisioner) Provision(ctx context.Context, in ProvisionInput) (_ *models.User, err error) {
	ctx, finish := startSpan(ctx, "Provisioner.Provision")
	defer func() { finish(err) }()

	source := in.Source
	if source == "" {
		source = "unknown"
	}

	email := emaildomain.NormalizeEmail(in.Email)
	if in.Onboarded && !in.Verified {
		return nil, models.ErrOnboardedUnverified
	}

	identityID, err := p.identities.CreateIdentity(ctx, email, in.PasswordHash)
	if err != nil {
		metrics.Provisioning.WithLabelValues(source, "failed").Inc()
		return nil, err
	}

	method := in.Method
	if method == "" {
		method = models.VerificationNone
	}

	user := &models.User{
		ID:                 identityID,
		Email:              email,
		PersonalEmail:      in.PersonalEmail,
		LinkedInURL:        in.LinkedInURL,
		FirstName:          strings.TrimSpace(in.FirstName),
		LastName:           strings.TrimSpace(in.LastName),
		City:               strings.TrimSpace(in.City),
		CompanyID:          in.CompanyID,
		IsVerified:         in.Verified,
		Onboarded:          in.Onboarded,
		IsActive:           true,
		IsAdmin:            in.IsAdmin,
		VerificationMethod: method,
	}
	if in.Verified {
		now := p.now()
		user.VerifiedAt = &now
	}

	if createErr := p.db.WithContext(ctx).Create(user).Error; createErr != nil {
		compErr := p.identities.DeleteIdentity(ctx, identityID)
		if compErr != nil {
			p.log.Error("provisioning compensation failed, orphaned identity",
				zap.String("identity_id", identityID),
				logger.Email("email", email),
				zap.Error(compErr),
			)
			metrics.Provisioning.WithLabelValues(source, "failed").Inc()
		} else {
			metrics.Provisioning.WithLabelValues(source, "compensated").Inc()
		}

		return nil, ErrProvisioningFailed.WithInternal(multierr.Append(createErr, compErr))
	}

	if in.Verified {
		if err := p.identities.ConfirmIdentity(ctx, identityID); err != nil {
			p.log.Warn("confirm identity failed", zap.String("identity_id", identityID), zap.Error(err))
		}
	}

	metrics.Provisioning.WithLabelValues(source, "created").Inc()
	p.log.Info("account provisioned",
		zap.String("user_id", user.ID),
		zap.String("source", source),
		zap.Bool("verified", user.IsVerified),
	)
	publishBestEffort(ctx, p.publisher, p.log, events.New(events.TypeUserProvisioned, user.ID, map[string]string{
		"source":              source,
		"verification_method": string(user.VerificationMethod),
	}))

	return user, nil
}

// Rollback removes a provisioned user and its identity. It is used when a
// later step of a workflow fails after Provision succeeded. The identity is
// removed first; when that fails the user row is kept so no login outlives
// its profile.
func (p *Provisioner) Rollback(ctx context.Context, user *models.User) error {
	if user == nil {
		return nil
	}
	ctx = ensureContext(ctx)

	if err := p.identities.DeleteIdentity(ctx, user.ID); err != nil {
		p.log.Error("provisioning rollback failed, account kept", zap.String("user_id", user.ID), zap.Error(err))
		return fmt.Errorf("provisioner: delete identity: %w", err)
	}
	if err := p.db.WithContext(ctx).Delete(&models.User{}, "id = ?", user.ID).Error; err != nil {
		p.log.Error("provisioning rollback left a profile without login", zap.String("user_id", user.ID), zap.Error(err))
		return fmt.Errorf("provisioner: delete user: %w", err)
	}
	return nil
}
