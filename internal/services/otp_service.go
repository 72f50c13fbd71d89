package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/workpass/internal/database"
	"github.com/charlesng35/workpass/internal/events"
	"github.com/charlesng35/workpass/internal/models"
	"github.com/charlesng35/workpass/pkg/crypto"
	"github.com/charlesng35/workpass/pkg/emaildomain"
	apperrors "github.com/charlesng35/workpass/pkg/errors"
	"github.com/charlesng35/workpass/pkg/logger"
	"github.com/charlesng35/workpass/pkg/metrics"
)

const (
	// DefaultOTPTTL is how long an issued code stays valid.
	DefaultOTPTTL = 10 * time.Minute
	// DefaultOTPCooldown is the minimum gap between two codes for one email.
	DefaultOTPCooldown = time.Minute
	// DefaultOTPMaxAttempts is the number of wrong guesses a code tolerates.
	DefaultOTPMaxAttempts = 5

	otpCodeMin = 100000
	otpCodeMax = 999999
)

var (
	ErrNotCorporateEmail   = apperrors.New("NOT_CORPORATE_EMAIL", "A corporate email address is required", http.StatusBadRequest)
	ErrOTPCooldown         = apperrors.New("OTP_COOLDOWN_ACTIVE", "Please wait before requesting another code", http.StatusTooManyRequests)
	ErrOTPInvalidOrExpired = apperrors.New("OTP_INVALID_OR_EXPIRED", "No active code for this email, request a new one", http.StatusNotFound)
	ErrOTPExpired          = apperrors.New("OTP_EXPIRED", "The code has expired, request a new one", http.StatusGone)
	ErrOTPIncorrect        = apperrors.New("OTP_INCORRECT", "The code is incorrect", http.StatusBadRequest)
	ErrOTPTooManyAttempts  = apperrors.New("OTP_TOO_MANY_ATTEMPTS", "Too many incorrect attempts, request a new code", http.StatusTooManyRequests)
)

// CooldownError reports how long the caller must wait before a new code can
// be issued. It unwraps to ErrOTPCooldown carrying retry_after_seconds.
type CooldownError struct {
	Remaining time.Duration
}

// RetryAfterSeconds rounds the remaining cooldown up to whole seconds.
func (e *CooldownError) RetryAfterSeconds() int {
	secs := int(math.Ceil(e.Remaining.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("otp: cooldown active, retry in %ds", e.RetryAfterSeconds())
}

func (e *CooldownError) Unwrap() error {
	return ErrOTPCooldown.WithDetails(map[string]any{"retry_after_seconds": e.RetryAfterSeconds()})
}

// OTPConfig tunes the one-time code engine.
type OTPConfig struct {
	Secret      []byte
	TTL         time.Duration
	Cooldown    time.Duration
	MaxAttempts int
}

// OTPService issues and verifies emailed one-time codes that prove control
// of a corporate mailbox. Only an HMAC of each code is stored.
type OTPService struct {
	db        *gorm.DB
	companies *CompanyService
	notifier  Notifier
	publisher events.Publisher
	audit     *AuditService
	cfg       OTPConfig
	now       func() time.Time
	generate  func() (string, error)
	log       *zap.Logger
}

// OTPOption customises the OTPService.
type OTPOption func(*OTPService)

// WithOTPClock overrides the clock used for cooldown and expiry checks.
func WithOTPClock(now func() time.Time) OTPOption {
	return func(s *OTPService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithOTPCodeGenerator replaces the random code source.
func WithOTPCodeGenerator(fn func() (string, error)) OTPOption {
	return func(s *OTPService) {
		if fn != nil {
			s.generate = fn
		}
	}
}

// WithOTPPublisher emits verification events on successful upgrades.
func WithOTPPublisher(publisher events.Publisher) OTPOption {
	return func(s *OTPService) {
		s.publisher = publisher
	}
}

// WithOTPAudit records verification upgrades in the audit trail.
func WithOTPAudit(audit *AuditService) OTPOption {
	return func(s *OTPService) {
		s.audit = audit
	}
}

// NewOTPService constructs an OTPService.
func NewOTPService(db *gorm.DB, companies *CompanyService, notifier Notifier, cfg OTPConfig, opts ...OTPOption) (*OTPService, error) {
	if db == nil {
		return nil, errors.New("otp service: db is required")
	}
	if companies == nil {
		return nil, errors.New("otp service: company service is required")
	}
	if len(cfg.Secret) == 0 {
		return nil, errors.New("otp service: secret is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultOTPTTL
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultOTPCooldown
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultOTPMaxAttempts
	}

	svc := &OTPService{
		db:        db,
		companies: companies,
		notifier:  notifier,
		cfg:       cfg,
		now:       time.Now,
		generate:  randomOTPCode,
		log:       logger.WithModule("otp"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Issue generates a fresh code for email and mails it. Any previous code is
// replaced. A code issued less than the cooldown ago yields a CooldownError.
func (s *OTPService) Issue(ctx context.Context, email string) error {
	ctx = ensureContext(ctx)

	email = emaildomain.NormalizeEmail(email)
	if !emaildomain.IsCorporateEmail(email) {
		metrics.OTPIssued.WithLabelValues("rejected").Inc()
		return ErrNotCorporateEmail
	}

	code, err := s.generate()
	if err != nil {
		return fmt.Errorf("otp service: generate code: %w", err)
	}

	now := s.now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.OneTimeCode
		err := tx.Where("email = ?", email).Take(&existing).Error
		switch {
		case err == nil:
			if remaining := existing.CreatedAt.Add(s.cfg.Cooldown).Sub(now); remaining > 0 {
				return &CooldownError{Remaining: remaining}
			}
			if err := tx.Delete(&models.OneTimeCode{}, "email = ?", email).Error; err != nil {
				return fmt.Errorf("otp service: delete previous code: %w", err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return fmt.Errorf("otp service: load code: %w", err)
		}

		row := models.OneTimeCode{
			Email:     email,
			CodeHash:  s.hash(email, code),
			ExpiresAt: now.Add(s.cfg.TTL),
			CreatedAt: now,
		}
		if err := tx.Create(&row).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return &CooldownError{Remaining: s.cfg.Cooldown}
			}
			return fmt.Errorf("otp service: store code: %w", err)
		}
		return nil
	})
	if err != nil {
		var cooldown *CooldownError
		if errors.As(err, &cooldown) {
			metrics.OTPIssued.WithLabelValues("cooldown").Inc()
		}
		return err
	}

	metrics.OTPIssued.WithLabelValues("issued").Inc()
	s.log.Info("otp issued", logger.Email("email", email))

	notifyBestEffort(ctx, s.notifier, s.log, NotifyOTPCode, email, map[string]string{
		"code":        code,
		"ttl_minutes": strconv.Itoa(int(s.cfg.TTL / time.Minute)),
	})
	return nil
}

// Match checks code against the live code for email without consuming it.
// Wrong guesses are counted; once the limit is reached every attempt fails
// with ErrOTPTooManyAttempts until a new code is issued. Expired codes are
// discarded on sight.
func (s *OTPService) Match(ctx context.Context, email, code string) error {
	ctx = ensureContext(ctx)
	email = emaildomain.NormalizeEmail(email)
	code = strings.TrimSpace(code)
	now := s.now()

	var outcome error
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.OneTimeCode
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("email = ?", email).Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			outcome = ErrOTPInvalidOrExpired
			return nil
		}
		if err != nil {
			return fmt.Errorf("otp service: load code: %w", err)
		}

		switch {
		case row.Expired(now):
			outcome = ErrOTPExpired
			return tx.Delete(&models.OneTimeCode{}, "email = ?", email).Error
		case row.Attempts >= s.cfg.MaxAttempts:
			// The locked row stays until it expires or is replaced, so its
			// created_at keeps anchoring the issue cooldown.
			outcome = ErrOTPTooManyAttempts
			return nil
		case !crypto.EqualHash(row.CodeHash, s.hash(email, code)):
			outcome = ErrOTPIncorrect
			return tx.Model(&models.OneTimeCode{}).
				Where("email = ?", email).
				UpdateColumn("attempts", gorm.Expr("attempts + 1")).Error
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("otp service: match: %w", err)
	}

	switch {
	case outcome == nil:
		metrics.OTPVerifications.WithLabelValues("verified").Inc()
	case errors.Is(outcome, ErrOTPIncorrect):
		metrics.OTPVerifications.WithLabelValues("incorrect").Inc()
	case errors.Is(outcome, ErrOTPExpired):
		metrics.OTPVerifications.WithLabelValues("expired").Inc()
	case errors.Is(outcome, ErrOTPTooManyAttempts):
		metrics.OTPVerifications.WithLabelValues("locked").Inc()
	default:
		metrics.OTPVerifications.WithLabelValues("missing").Inc()
	}
	return outcome
}

// Verify checks code for email and, on success, upgrades the user in place:
// the email becomes the secondary email, the company is resolved from its
// domain, and the user is marked verified and onboarded. The code is deleted
// only after the user update, in the same transaction.
func (s *OTPService) Verify(ctx context.Context, email, code, userID string) (_ *models.User, err error) {
	ctx, finish := startSpan(ctx, "OTPService.Verify")
	defer func() { finish(err) }()

	email = emaildomain.NormalizeEmail(email)

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("otp service: load user: %w", err)
	}

	if err := s.Match(ctx, email, code); err != nil {
		return nil, err
	}

	companyID, err := s.companies.ResolveEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("otp service: resolve company: %w", err)
	}

	now := s.now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]any{
			"secondary_email":     email,
			"company_id":          companyID,
			"is_verified":         true,
			"onboarded":           true,
			"verification_method": models.VerificationOTP,
			"verified_at":         now,
		}).Error; err != nil {
			return fmt.Errorf("otp service: upgrade user: %w", err)
		}

		consumed := tx.Where("email = ? AND code_hash = ?", email, s.hash(email, code)).Delete(&models.OneTimeCode{})
		if consumed.Error != nil {
			return fmt.Errorf("otp service: consume code: %w", consumed.Error)
		}
		if consumed.RowsAffected == 0 {
			return ErrOTPInvalidOrExpired
		}

		return tx.First(&user, "id = ?", user.ID).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("user verified by otp",
		zap.String("user_id", user.ID),
		zap.String("company_id", companyID),
	)
	recordAudit(s.audit, ctx, AuditEntry{
		Action:     "verification.otp",
		Resource:   "user",
		ResourceID: user.ID,
		Result:     AuditResultSuccess,
		Metadata:   map[string]any{"company_id": companyID, "domain": emaildomain.ExtractDomain(email)},
	})
	publishBestEffort(ctx, s.publisher, s.log, events.New(events.TypeOTPVerified, user.ID, map[string]string{
		"company_id": companyID,
		"method":     string(models.VerificationOTP),
	}))

	return &user, nil
}

// Discard removes any live code for email.
func (s *OTPService) Discard(ctx context.Context, email string) error {
	return discardCode(s.db.WithContext(ensureContext(ctx)), email)
}

func discardCode(tx *gorm.DB, email string) error {
	if err := tx.Delete(&models.OneTimeCode{}, "email = ?", emaildomain.NormalizeEmail(email)).Error; err != nil {
		return fmt.Errorf("otp service: discard code: %w", err)
	}
	return nil
}

// PurgeExpired deletes codes whose expiry has passed.
func (s *OTPService) PurgeExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ensureContext(ctx)).Where("expires_at <= ?", s.now()).Delete(&models.OneTimeCode{})
	if result.Error != nil {
		return 0, fmt.Errorf("otp service: purge expired: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *OTPService) hash(email, code string) string {
	return crypto.KeyedHash(s.cfg.Secret, email, code)
}

func randomOTPCode() (string, error) {
	n, err := crypto.RandomCode(otpCodeMin, otpCodeMax)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n, 10), nil
}
