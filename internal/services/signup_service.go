package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/workpass/internal/auth"
	"github.com/charlesng35/workpass/internal/models"
	"github.com/charlesng35/workpass/pkg/crypto"
	"github.com/charlesng35/workpass/pkg/emaildomain"
	apperrors "github.com/charlesng35/workpass/pkg/errors"
	"github.com/charlesng35/workpass/pkg/logger"
)

// RegisterInput creates an unverified account directly.
type RegisterInput struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"required,first_name"`
	LastName  string `json:"last_name" validate:"omitempty,max=50"`
	City      string `json:"city" validate:"omitempty,max=100"`
}

// StartSignupInput begins a signup that completes once the corporate code is confirmed.
type StartSignupInput struct {
	Email     string `json:"email" validate:"required,email,corporate_email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"required,first_name"`
}

// SignupService drives the two account creation paths: direct registration
// of an unverified account, and code-confirmed signup that creates a
// verified, onboarded account from a staged intent.
type SignupService struct {
	db          *gorm.DB
	identities  auth.IdentityProvider
	intents     *SignupIntentService
	otp         *OTPService
	companies   *CompanyService
	provisioner *Provisioner
	audit       *AuditService
	log         *zap.Logger
}

// SignupDeps lists the collaborators of SignupService.
type SignupDeps struct {
	DB          *gorm.DB
	Identities  auth.IdentityProvider
	Intents     *SignupIntentService
	OTP         *OTPService
	Companies   *CompanyService
	Provisioner *Provisioner
	Audit       *AuditService
}

// NewSignupService constructs a SignupService.
func NewSignupService(deps SignupDeps) (*SignupService, error) {
	switch {
	case deps.DB == nil:
		return nil, errors.New("signup service: db is required")
	case deps.Identities == nil:
		return nil, errors.New("signup service: identity provider is required")
	case deps.Intents == nil:
		return nil, errors.New("signup service: signup intent service is required")
	case deps.OTP == nil:
		return nil, errors.New("signup service: otp service is required")
	case deps.Companies == nil:
		return nil, errors.New("signup service: company service is required")
	case deps.Provisioner == nil:
		return nil, errors.New("signup service: provisioner is required")
	}

	return &SignupService{
		db:          deps.DB,
		identities:  deps.Identities,
		intents:     deps.Intents,
		otp:         deps.OTP,
		companies:   deps.Companies,
		provisioner: deps.Provisioner,
		audit:       deps.Audit,
		log:         logger.WithModule("signup"),
	}, nil
}

// Register creates an unverified account. The member verifies later, either
// with a corporate code or a manual request.
func (s *SignupService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	email := emaildomain.NormalizeEmail(input.Email)
	if emaildomain.ExtractDomain(email) == "" {
		return nil, apperrors.NewBadRequest("a valid email is required")
	}
	firstName := strings.TrimSpace(input.FirstName)
	if !emaildomain.ValidateFirstName(firstName) {
		return nil, ErrInvalidFirstName
	}
	if len(input.Password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("signup service: hash password: %w", err)
	}

	user, err := s.provisioner.Provision(ctx, ProvisionInput{
		Email:        email,
		PasswordHash: hash,
		FirstName:    firstName,
		LastName:     input.LastName,
		City:         input.City,
		Source:       "register",
	})
	if err != nil {
		return nil, err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		ActorID:    &user.ID,
		Action:     "user.register",
		Resource:   "user",
		ResourceID: user.ID,
		Result:     AuditResultSuccess,
	})
	return user, nil
}

// Start stages the signup and mails a code to the corporate address. An
// email that already owns an account is rejected before any code is sent.
func (s *SignupService) Start(ctx context.Context, input StartSignupInput) error {
	ctx = ensureContext(ctx)

	email := emaildomain.NormalizeEmail(input.Email)
	if !emaildomain.IsCorporateEmail(email) {
		return ErrNotCorporateEmail
	}

	_, err := s.identities.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return auth.ErrIdentityExists
	case errors.Is(err, auth.ErrIdentityNotFound):
	default:
		return fmt.Errorf("signup service: lookup identity: %w", err)
	}

	if _, err := s.intents.Stage(ctx, email, input.FirstName, input.Password); err != nil {
		return err
	}
	return s.otp.Issue(ctx, email)
}

// Complete confirms the code and creates the account from the staged intent.
// The intent and the code are removed once the account exists.
func (s *SignupService) Complete(ctx context.Context, email, code string) (_ *models.User, err error) {
	ctx, finish := startSpan(ctx, "SignupService.Complete")
	defer func() { finish(err) }()

	email = emaildomain.NormalizeEmail(email)
	if err := s.otp.Match(ctx, email, code); err != nil {
		return nil, err
	}

	intent, err := s.intents.Get(ctx, email)
	if err != nil {
		return nil, err
	}

	companyID, err := s.companies.ResolveEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("signup service: resolve company: %w", err)
	}

	user, err := s.provisioner.Provision(ctx, ProvisionInput{
		Email:        email,
		PasswordHash: intent.PasswordHash,
		FirstName:    intent.FirstName,
		CompanyID:    &companyID,
		Verified:     true,
		Onboarded:    true,
		Method:       models.VerificationOTP,
		Source:       "signup",
	})
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteIntent(tx, email); err != nil {
			return err
		}
		return discardCode(tx, email)
	}); err != nil {
		s.log.Warn("signup cleanup failed", zap.String("user_id", user.ID), zap.Error(err))
	}

	recordAudit(s.audit, ctx, AuditEntry{
		ActorID:    &user.ID,
		Action:     "signup.complete",
		Resource:   "user",
		ResourceID: user.ID,
		Result:     AuditResultSuccess,
		Metadata:   map[string]any{"company_id": companyID, "domain": emaildomain.ExtractDomain(email)},
	})
	return user, nil
}
