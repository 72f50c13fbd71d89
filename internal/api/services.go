package api

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/workpass/internal/app"
	iauth "github.com/charlesng35/workpass/internal/auth"
	"github.com/charlesng35/workpass/internal/auth/providers"
	"github.com/charlesng35/workpass/internal/events"
	"github.com/charlesng35/workpass/internal/services"
)

// ServiceOptions carries the collaborators that differ between the server
// and tests.
type ServiceOptions struct {
	Notifier      services.Notifier
	Publisher     events.Publisher
	Clock         func() time.Time
	CodeGenerator func() (string, error)
}

// Services is the fully wired service layer behind the HTTP API.
type Services struct {
	JWT         *iauth.JWTService
	Identities  *providers.LocalProvider
	Audit       *services.AuditService
	Companies   *services.CompanyService
	Intents     *services.SignupIntentService
	Provisioner *services.Provisioner
	OTP         *services.OTPService
	Manual      *services.ManualVerificationService
	Waitlist    *services.WaitlistService
	Users       *services.UserService
	Signup      *services.SignupService
	Auth        *services.AuthService
	Resets      *services.PasswordResetService
}

// NewServices builds every service from configuration.
func NewServices(db *gorm.DB, cfg *app.Config, opts ServiceOptions) (*Services, error) {
	if db == nil {
		return nil, errors.New("database handle must be provided")
	}
	if cfg == nil {
		return nil, errors.New("config must be provided")
	}
	if opts.Notifier == nil {
		return nil, errors.New("notifier must be provided")
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NopPublisher{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	jwtCfg := cfg.Auth.JWTServiceConfig()
	jwtCfg.Clock = opts.Clock
	jwt, err := iauth.NewJWTService(jwtCfg)
	if err != nil {
		return nil, fmt.Errorf("jwt service: %w", err)
	}

	localCfg := cfg.Auth.LocalProviderConfig()
	localCfg.Clock = opts.Clock
	identities, err := providers.NewLocalProvider(db, localCfg)
	if err != nil {
		return nil, err
	}

	otpCfg, err := cfg.Verification.OTPServiceConfig()
	if err != nil {
		return nil, err
	}

	s := &Services{JWT: jwt, Identities: identities}

	if s.Audit, err = services.NewAuditService(db); err != nil {
		return nil, err
	}
	if s.Companies, err = services.NewCompanyService(db); err != nil {
		return nil, err
	}
	if s.Intents, err = services.NewSignupIntentService(db); err != nil {
		return nil, err
	}
	if s.Provisioner, err = services.NewProvisioner(db, identities,
		services.WithProvisionerClock(opts.Clock),
		services.WithProvisionerPublisher(opts.Publisher),
	); err != nil {
		return nil, err
	}

	otpOpts := []services.OTPOption{
		services.WithOTPClock(opts.Clock),
		services.WithOTPPublisher(opts.Publisher),
		services.WithOTPAudit(s.Audit),
	}
	if opts.CodeGenerator != nil {
		otpOpts = append(otpOpts, services.WithOTPCodeGenerator(opts.CodeGenerator))
	}
	if s.OTP, err = services.NewOTPService(db, s.Companies, opts.Notifier, otpCfg, otpOpts...); err != nil {
		return nil, err
	}

	if s.Manual, err = services.NewManualVerificationService(db, s.Companies, opts.Notifier,
		services.WithManualClock(opts.Clock),
		services.WithManualPublisher(opts.Publisher),
		services.WithManualAudit(s.Audit),
	); err != nil {
		return nil, err
	}
	if s.Waitlist, err = services.NewWaitlistService(db, s.Companies, s.Intents, s.Provisioner, opts.Notifier,
		services.WithWaitlistClock(opts.Clock),
		services.WithWaitlistPublisher(opts.Publisher),
		services.WithWaitlistAudit(s.Audit),
	); err != nil {
		return nil, err
	}
	if s.Users, err = services.NewUserService(db, identities, s.Audit); err != nil {
		return nil, err
	}
	if s.Signup, err = services.NewSignupService(services.SignupDeps{
		DB:          db,
		Identities:  identities,
		Intents:     s.Intents,
		OTP:         s.OTP,
		Companies:   s.Companies,
		Provisioner: s.Provisioner,
		Audit:       s.Audit,
	}); err != nil {
		return nil, err
	}
	if s.Auth, err = services.NewAuthService(identities, s.Users, jwt, s.Audit); err != nil {
		return nil, err
	}
	if s.Resets, err = services.NewPasswordResetService(db, identities, opts.Notifier,
		services.WithResetTokenTTL(cfg.Auth.ResetTokenTTL()),
		services.WithResetClock(opts.Clock),
		services.WithResetAudit(s.Audit),
	); err != nil {
		return nil, err
	}

	return s, nil
}
