package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/workpass/internal/auth"
	"github.com/charlesng35/workpass/internal/models"
	"github.com/charlesng35/workpass/pkg/emaildomain"
	apperrors "github.com/charlesng35/workpass/pkg/errors"
	"github.com/charlesng35/workpass/pkg/logger"
)

var (
	ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	// ErrUserNotVerified blocks onboarding before verification.
	ErrUserNotVerified = apperrors.New("USER_NOT_VERIFIED", "Verify your employment before onboarding", http.StatusForbidden)
	// ErrOnboardedRequiresVerified rejects admin patches that would onboard an unverified user.
	ErrOnboardedRequiresVerified = apperrors.New("ONBOARDED_REQUIRES_VERIFIED", "An onboarded user must be verified", http.StatusBadRequest)
	// ErrAdminSelfLockout stops an admin from removing their own access.
	ErrAdminSelfLockout = apperrors.New("ADMIN_SELF_LOCKOUT", "Admins cannot deactivate or demote themselves", http.StatusBadRequest)
)

// ListUsersOptions filters the admin user listing.
type ListUsersOptions struct {
	Page      int
	PageSize  int
	Query     string
	Verified  *bool
	CompanyID string
}

// OnboardingInput carries the profile completed after verification.
type OnboardingInput struct {
	City          string  `json:"city" validate:"required,max=100"`
	LastName      string  `json:"last_name" validate:"omitempty,max=50"`
	LinkedInURL   *string `json:"linkedin_url" validate:"omitempty,linkedin_url"`
	PersonalEmail *string `json:"personal_email" validate:"omitempty,email"`
}

// AdminUserPatch lists every field an admin may change. Nil fields are left
// untouched.
type AdminUserPatch struct {
	FirstName     *string `json:"first_name" validate:"omitempty,first_name"`
	LastName      *string `json:"last_name" validate:"omitempty,max=50"`
	PersonalEmail *string `json:"personal_email" validate:"omitempty,email"`
	LinkedInURL   *string `json:"linkedin_url" validate:"omitempty,linkedin_url"`
	City          *string `json:"city" validate:"omitempty,max=100"`
	IsActive      *bool   `json:"is_active"`
	IsVerified    *bool   `json:"is_verified"`
	Onboarded     *bool   `json:"onboarded"`
	IsAdmin       *bool   `json:"is_admin"`
}

// UserService manages member profiles and admin edits.
type UserService struct {
	db         *gorm.DB
	identities auth.IdentityProvider
	audit      *AuditService
	now        func() time.Time
	log        *zap.Logger
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB, identities auth.IdentityProvider, audit *AuditService) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	if identities == nil {
		return nil, errors.New("user service: identity provider is required")
	}
	return &UserService{
		db:         db,
		identities: identities,
		audit:      audit,
		now:        time.Now,
		log:        logger.WithModule("users"),
	}, nil
}

// GetByID loads a user including their company.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).Preload("Company").First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: get user: %w", err)
	}
	return &user, nil
}

// List retrieves users matching the supplied filters with pagination.
func (s *UserService) List(ctx context.Context, opts ListUsersOptions) ([]models.User, int64, error) {
	ctx = ensureContext(ctx)
	page, perPage := pageBounds(opts.Page, opts.PageSize)

	query := s.db.WithContext(ctx).Model(&models.User{})
	if opts.Verified != nil {
		query = query.Where("is_verified = ?", *opts.Verified)
	}
	if opts.CompanyID != "" {
		query = query.Where("company_id = ?", opts.CompanyID)
	}
	if q := strings.TrimSpace(opts.Query); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(city) LIKE ?", pattern, pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("user service: count users: %w", err)
	}

	var users []models.User
	if err := query.
		Preload("Company").
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("user service: list users: %w", err)
	}

	return users, total, nil
}

// CompleteOnboarding stores the post-verification profile and opens full access.
func (s *UserService) CompleteOnboarding(ctx context.Context, userID string, input OnboardingInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsVerified {
		return nil, ErrUserNotVerified
	}

	city := strings.TrimSpace(input.City)
	if city == "" {
		return nil, apperrors.NewBadRequest("city is required")
	}

	updates := map[string]any{
		"city":      city,
		"onboarded": true,
	}
	if last := strings.TrimSpace(input.LastName); last != "" {
		updates["last_name"] = last
	}
	if input.LinkedInURL != nil {
		updates["linkedin_url"] = optionalString(*input.LinkedInURL)
	}
	if input.PersonalEmail != nil {
		updates["personal_email"] = optionalString(emaildomain.NormalizeEmail(*input.PersonalEmail))
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("user service: complete onboarding: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:     "user.onboard",
		Resource:   "user",
		ResourceID: user.ID,
		Result:     AuditResultSuccess,
	})

	return s.GetByID(ctx, user.ID)
}

// AdminUpdate applies patch to the user. Turning verification off also
// requires turning onboarding off in the same patch.
func (s *UserService) AdminUpdate(ctx context.Context, adminID, id string, patch AdminUserPatch) (*models.User, error) {
	ctx = ensureContext(ctx)

	if adminID == id && ((patch.IsAdmin != nil && !*patch.IsAdmin) || (patch.IsActive != nil && !*patch.IsActive)) {
		return nil, ErrAdminSelfLockout
	}

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: load user: %w", err)
	}

	changed := make([]string, 0, 9)
	if patch.FirstName != nil {
		name := strings.TrimSpace(*patch.FirstName)
		if !emaildomain.ValidateFirstName(name) {
			return nil, ErrInvalidFirstName
		}
		user.FirstName = name
		changed = append(changed, "first_name")
	}
	if patch.LastName != nil {
		user.LastName = strings.TrimSpace(*patch.LastName)
		changed = append(changed, "last_name")
	}
	if patch.PersonalEmail != nil {
		user.PersonalEmail = optionalString(emaildomain.NormalizeEmail(*patch.PersonalEmail))
		changed = append(changed, "personal_email")
	}
	if patch.LinkedInURL != nil {
		user.LinkedInURL = optionalString(*patch.LinkedInURL)
		changed = append(changed, "linkedin_url")
	}
	if patch.City != nil {
		user.City = strings.TrimSpace(*patch.City)
		changed = append(changed, "city")
	}
	if patch.IsActive != nil {
		user.IsActive = *patch.IsActive
		changed = append(changed, "is_active")
	}
	if patch.IsAdmin != nil {
		user.IsAdmin = *patch.IsAdmin
		changed = append(changed, "is_admin")
	}
	if patch.IsVerified != nil && *patch.IsVerified != user.IsVerified {
		user.IsVerified = *patch.IsVerified
		if user.IsVerified {
			now := s.now()
			user.VerifiedAt = &now
			user.VerificationMethod = models.VerificationManual
		} else {
			user.VerifiedAt = nil
			user.VerificationMethod = models.VerificationNone
		}
		changed = append(changed, "is_verified")
	}
	if patch.Onboarded != nil {
		user.Onboarded = *patch.Onboarded
		changed = append(changed, "onboarded")
	}

	if err := user.Validate(); err != nil {
		return nil, ErrOnboardedRequiresVerified
	}
	if len(changed) == 0 {
		return s.GetByID(ctx, user.ID)
	}

	if err := s.db.WithContext(ctx).Omit("Company").Save(&user).Error; err != nil {
		return nil, fmt.Errorf("user service: save user: %w", err)
	}

	s.log.Info("user updated by admin",
		zap.String("user_id", user.ID),
		zap.String("admin_id", adminID),
		zap.Strings("fields", changed),
	)
	recordAudit(s.audit, ctx, AuditEntry{
		ActorID:    optionalString(adminID),
		Action:     "user.admin_update",
		Resource:   "user",
		ResourceID: user.ID,
		Result:     AuditResultSuccess,
		Metadata:   map[string]any{"fields": changed},
	})

	return s.GetByID(ctx, user.ID)
}

// Delete hard-deletes the user, their manual verification requests and their
// login identity. The identity goes first: a failure there leaves the account
// whole, never a login without a profile.
func (s *UserService) Delete(ctx context.Context, adminID, id string) error {
	ctx = ensureContext(ctx)

	if adminID == id {
		return ErrAdminSelfLockout
	}

	var exists int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&exists).Error; err != nil {
		return fmt.Errorf("user service: load user: %w", err)
	}
	if exists == 0 {
		return ErrUserNotFound
	}

	if err := s.identities.DeleteIdentity(ctx, id); err != nil {
		return fmt.Errorf("user service: delete identity: %w", err)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.ManualVerificationRequest{}).Error; err != nil {
			return fmt.Errorf("user service: delete requests: %w", err)
		}
		if err := tx.Delete(&models.User{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("user service: delete user: %w", err)
		}
		return nil
	})
	if err != nil {
		s.log.Error("profile delete failed after identity delete", zap.String("user_id", id), zap.Error(err))
		return err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		ActorID:    optionalString(adminID),
		Action:     "user.delete",
		Resource:   "user",
		ResourceID: id,
		Result:     AuditResultSuccess,
	})
	return nil
}

// RecordLogin stamps the last successful login.
func (s *UserService) RecordLogin(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).UpdateColumn("last_login_at", s.now()).Error; err != nil {
		return fmt.Errorf("user service: record login: %w", err)
	}
	return nil
}
