package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/workpass/internal/models"
	"github.com/charlesng35/workpass/pkg/crypto"
	"github.com/charlesng35/workpass/pkg/emaildomain"
	apperrors "github.com/charlesng35/workpass/pkg/errors"
)

const minPasswordLength = 8

var (
	// ErrNoSignupIntent is returned when no staged signup exists for an email.
	ErrNoSignupIntent = apperrors.New("NO_SIGNUP_INTENT", "No pending signup exists for this email", http.StatusConflict)
	// ErrInvalidFirstName rejects names outside 2..50 characters.
	ErrInvalidFirstName = apperrors.New("INVALID_FIRST_NAME", "First name must be between 2 and 50 characters", http.StatusBadRequest)
	// ErrWeakPassword rejects passwords shorter than the minimum.
	ErrWeakPassword = apperrors.New("WEAK_PASSWORD", "Password must be at least 8 characters", http.StatusBadRequest)
)

// SignupIntentService stages the credentials of a signup that cannot finish
// yet, keyed by normalized email. Staging again replaces the previous intent.
type SignupIntentService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSignupIntentService constructs a SignupIntentService.
func NewSignupIntentService(db *gorm.DB) (*SignupIntentService, error) {
	if db == nil {
		return nil, errors.New("signup intent service: db is required")
	}
	return &SignupIntentService{db: db, now: time.Now}, nil
}

// Stage hashes password and upserts the intent for email.
func (s *SignupIntentService) Stage(ctx context.Context, email, firstName, password string) (*models.SignupIntent, error) {
	ctx = ensureContext(ctx)

	email = emaildomain.NormalizeEmail(email)
	if emaildomain.ExtractDomain(email) == "" {
		return nil, apperrors.NewBadRequest("a valid email is required")
	}
	firstName = strings.TrimSpace(firstName)
	if !emaildomain.ValidateFirstName(firstName) {
		return nil, ErrInvalidFirstName
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("signup intent service: hash password: %w", err)
	}

	now := s.now()
	intent := models.SignupIntent{
		Email:        email,
		FirstName:    firstName,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"first_name", "password_hash", "created_at", "updated_at"}),
	}).Create(&intent).Error; err != nil {
		return nil, fmt.Errorf("signup intent service: stage: %w", err)
	}

	return &intent, nil
}

// Get returns the intent for email or ErrNoSignupIntent.
func (s *SignupIntentService) Get(ctx context.Context, email string) (*models.SignupIntent, error) {
	ctx = ensureContext(ctx)

	var intent models.SignupIntent
	err := s.db.WithContext(ctx).Where("email = ?", emaildomain.NormalizeEmail(email)).Take(&intent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoSignupIntent
	}
	if err != nil {
		return nil, fmt.Errorf("signup intent service: get: %w", err)
	}
	return &intent, nil
}

// Delete removes the intent for email. Missing intents are ignored.
func (s *SignupIntentService) Delete(ctx context.Context, email string) error {
	return deleteIntent(s.db.WithContext(ensureContext(ctx)), email)
}

// PurgeOlderThan removes intents staged before cutoff.
func (s *SignupIntentService) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ensureContext(ctx)).Where("created_at < ?", cutoff).Delete(&models.SignupIntent{})
	if result.Error != nil {
		return 0, fmt.Errorf("signup intent service: purge: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func deleteIntent(tx *gorm.DB, email string) error {
	if err := tx.Delete(&models.SignupIntent{}, "email = ?", emaildomain.NormalizeEmail(email)).Error; err != nil {
		return fmt.Errorf("signup intent service: delete: %w", err)
	}
	return nil
}
