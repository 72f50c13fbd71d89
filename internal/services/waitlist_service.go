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

	"github.com/charlesng35/workpass/internal/database"
	"github.com/charlesng35/workpass/internal/events"
	"github.com/charlesng35/workpass/internal/models"
	"github.com/charlesng35/workpass/pkg/emaildomain"
	apperrors "github.com/charlesng35/workpass/pkg/errors"
	"github.com/charlesng35/workpass/pkg/logger"
	"github.com/charlesng35/workpass/pkg/metrics"
)

var (
	ErrWaitlistNotFound = apperrors.New("WAITLIST_NOT_FOUND", "Waitlist entry not found", http.StatusNotFound)
	// ErrWaitlistPending allows one open application per corporate email.
	ErrWaitlistPending = apperrors.New("WAITLIST_PENDING", "An application for this email is already under review", http.StatusConflict)
)

const reviewQueueWaitlist = "waitlist"

// WaitlistInput is a pre-account application.
type WaitlistInput struct {
	CorporateEmail string  `json:"corporate_email" validate:"required,email,corporate_email"`
	PersonalEmail  string  `json:"personal_email" validate:"required,email"`
	LinkedInURL    *string `json:"linkedin_url" validate:"omitempty,linkedin_url"`
	City           string  `json:"city" validate:"omitempty,max=100"`
}

// WaitlistService reviews applications from people who could not finish
// signup. Approval provisions a verified, onboarded account from the
// applicant's staged signup intent.
type WaitlistService struct {
	db          *gorm.DB
	companies   *CompanyService
	intents     *SignupIntentService
	provisioner *Provisioner
	notifier    Notifier
	publisher   events.Publisher
	audit       *AuditService
	now         func() time.Time
	log         *zap.Logger
}

// WaitlistOption customises the WaitlistService.
type WaitlistOption func(*WaitlistService)

// WithWaitlistClock overrides the clock used for review timestamps.
func WithWaitlistClock(now func() time.Time) WaitlistOption {
	return func(s *WaitlistService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithWaitlistPublisher emits review events.
func WithWaitlistPublisher(publisher events.Publisher) WaitlistOption {
	return func(s *WaitlistService) {
		s.publisher = publisher
	}
}

// WithWaitlistAudit records review decisions.
func WithWaitlistAudit(audit *AuditService) WaitlistOption {
	return func(s *WaitlistService) {
		s.audit = audit
	}
}

// NewWaitlistService constructs a WaitlistService.
func NewWaitlistService(db *gorm.DB, companies *CompanyService, intents *SignupIntentService, provisioner *Provisioner, notifier Notifier, opts ...WaitlistOption) (*WaitlistService, error) {
	switch {
	case db == nil:
		return nil, errors.New("waitlist service: db is required")
	case companies == nil:
		return nil, errors.New("waitlist service: company service is required")
	case intents == nil:
		return nil, errors.New("waitlist service: signup intent service is required")
	case provisioner == nil:
		return nil, errors.New("waitlist service: provisioner is required")
	}

	svc := &WaitlistService{
		db:          db,
		companies:   companies,
		intents:     intents,
		provisioner: provisioner,
		notifier:    notifier,
		now:         time.Now,
		log:         logger.WithModule("waitlist"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Submit records a pending application and returns its ID.
func (s *WaitlistService) Submit(ctx context.Context, input WaitlistInput) (string, error) {
	ctx = ensureContext(ctx)

	corporate := emaildomain.NormalizeEmail(input.CorporateEmail)
	if !emaildomain.IsCorporateEmail(corporate) {
		return "", ErrNotCorporateEmail
	}
	personal := emaildomain.NormalizeEmail(input.PersonalEmail)
	if emaildomain.ExtractDomain(personal) == "" {
		return "", apperrors.NewBadRequest("a valid personal email is required")
	}

	pending := corporate
	entry := models.WaitlistEntry{
		CorporateEmail: corporate,
		PersonalEmail:  personal,
		LinkedInURL:    optionalString(derefString(input.LinkedInURL)),
		City:           strings.TrimSpace(input.City),
		Status:         models.ReviewPending,
		PendingEmail:   &pending,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return "", ErrWaitlistPending
		}
		return "", fmt.Errorf("waitlist service: create entry: %w", err)
	}

	s.log.Info("waitlist application received", zap.String("entry_id", entry.ID), logger.Email("email", corporate))
	publishBestEffort(ctx, s.publisher, s.log, events.New(events.TypeWaitlistJoined, entry.ID, map[string]string{
		"domain": emaildomain.ExtractDomain(corporate),
	}))
	notifyBestEffort(ctx, s.notifier, s.log, NotifyWaitlistReceived, personal, map[string]string{
		"corporate_email": corporate,
	})

	return entry.ID, nil
}

// Approve provisions the applicant's account from their signup intent. The
// intent is required; without it nothing changes. If the account cannot be
// created the entry stays pending. If another admin reviews the entry while
// the account is being created, the new account is rolled back and
// ErrAlreadyTerminal is returned.
func (s *WaitlistService) Approve(ctx context.Context, adminID, id, notes string) (_ *models.User, err error) {
	ctx, finish := startSpan(ctx, "WaitlistService.Approve")
	defer func() { finish(err) }()

	entry, err := s.loadPending(ctx, id)
	if err != nil {
		return nil, err
	}
	email := emaildomain.NormalizeEmail(entry.CorporateEmail)

	intent, err := s.intents.Get(ctx, email)
	if err != nil {
		return nil, err
	}

	companyID, err := s.companies.ResolveEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("waitlist service: resolve company: %w", err)
	}

	personal := entry.PersonalEmail
	user, err := s.provisioner.Provision(ctx, ProvisionInput{
		Email:         email,
		PasswordHash:  intent.PasswordHash,
		FirstName:     intent.FirstName,
		City:          entry.City,
		PersonalEmail: optionalString(personal),
		LinkedInURL:   entry.LinkedInURL,
		CompanyID:     &companyID,
		Verified:      true,
		Onboarded:     true,
		Method:        models.VerificationManual,
		Source:        "waitlist",
	})
	if err != nil {
		s.log.Error("waitlist provisioning failed", zap.String("entry_id", entry.ID), zap.Error(err))
		return nil, err
	}

	now := s.now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.WaitlistEntry{}).
			Where("id = ? AND status = ?", entry.ID, models.ReviewPending).
			Updates(map[string]any{
				"status":              models.ReviewApproved,
				"notes":               strings.TrimSpace(notes),
				"reviewed_by":         optionalString(adminID),
				"reviewed_at":         now,
				"provisioned_user_id": user.ID,
				"pending_email":       nil,
			})
		if result.Error != nil {
			return fmt.Errorf("waitlist service: mark approved: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrAlreadyTerminal
		}
		if err := deleteIntent(tx, email); err != nil {
			return err
		}
		return discardCode(tx, email)
	})
	if err != nil {
		err = multierr.Append(err, s.provisioner.Rollback(ctx, user))
		return nil, err
	}

	metrics.ReviewDecisions.WithLabelValues(reviewQueueWaitlist, string(models.ReviewApproved)).Inc()
	s.log.Info("waitlist entry approved",
		zap.String("entry_id", entry.ID),
		zap.String("user_id", user.ID),
		zap.String("admin_id", adminID),
	)
	s.afterReview(ctx, adminID, entry, models.ReviewApproved, map[string]string{
		"user_id":    user.ID,
		"company_id": companyID,
	})
	notifyBestEffort(ctx, s.notifier, s.log, NotifyWaitlistApproved, personal, map[string]string{
		"first_name":      user.FirstName,
		"corporate_email": email,
	})

	return user, nil
}

// Reject closes the application. No account is created or removed.
func (s *WaitlistService) Reject(ctx context.Context, adminID, id, notes string) (err error) {
	ctx, finish := startSpan(ctx, "WaitlistService.Reject")
	defer func() { finish(err) }()

	entry, err := s.loadPending(ctx, id)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Model(&models.WaitlistEntry{}).
		Where("id = ? AND status = ?", entry.ID, models.ReviewPending).
		Updates(map[string]any{
			"status":        models.ReviewRejected,
			"notes":         strings.TrimSpace(notes),
			"reviewed_by":   optionalString(adminID),
			"reviewed_at":   s.now(),
			"pending_email": nil,
		})
	if result.Error != nil {
		return fmt.Errorf("waitlist service: mark rejected: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyTerminal
	}

	metrics.ReviewDecisions.WithLabelValues(reviewQueueWaitlist, string(models.ReviewRejected)).Inc()
	s.log.Info("waitlist entry rejected", zap.String("entry_id", entry.ID), zap.String("admin_id", adminID))
	s.afterReview(ctx, adminID, entry, models.ReviewRejected, nil)
	notifyBestEffort(ctx, s.notifier, s.log, NotifyWaitlistRejected, entry.PersonalEmail, map[string]string{
		"notes": strings.TrimSpace(notes),
	})
	return nil
}

// Get loads a waitlist entry.
func (s *WaitlistService) Get(ctx context.Context, id string) (*models.WaitlistEntry, error) {
	ctx = ensureContext(ctx)

	var entry models.WaitlistEntry
	err := s.db.WithContext(ctx).First(&entry, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWaitlistNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("waitlist service: get entry: %w", err)
	}
	return &entry, nil
}

// List returns waitlist entries oldest first.
func (s *WaitlistService) List(ctx context.Context, opts ReviewListOptions) ([]models.WaitlistEntry, int64, error) {
	ctx = ensureContext(ctx)
	page, perPage := pageBounds(opts.Page, opts.PageSize)

	query := s.db.WithContext(ctx).Model(&models.WaitlistEntry{})
	if opts.Status != "" {
		query = query.Where("status = ?", opts.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("waitlist service: count entries: %w", err)
	}

	var entries []models.WaitlistEntry
	if err := query.
		Order("created_at ASC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&entries).Error; err != nil {
		return nil, 0, fmt.Errorf("waitlist service: list entries: %w", err)
	}
	return entries, total, nil
}

func (s *WaitlistService) loadPending(ctx context.Context, id string) (*models.WaitlistEntry, error) {
	entry, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.Status.Terminal() {
		return nil, ErrAlreadyTerminal
	}
	return entry, nil
}

func (s *WaitlistService) afterReview(ctx context.Context, adminID string, entry *models.WaitlistEntry, decision models.ReviewStatus, data map[string]string) {
	metadata := map[string]any{"domain": emaildomain.ExtractDomain(entry.CorporateEmail)}
	for k, v := range data {
		metadata[k] = v
	}
	recordAudit(s.audit, ctx, AuditEntry{
		ActorID:    optionalString(adminID),
		Action:     "waitlist." + string(decision),
		Resource:   "waitlist_entry",
		ResourceID: entry.ID,
		Result:     AuditResultSuccess,
		Metadata:   metadata,
	})

	eventType := events.TypeWaitlistRejected
	if decision == models.ReviewApproved {
		eventType = events.TypeWaitlistApproved
	}
	subject := entry.ID
	if userID := data["user_id"]; userID != "" {
		subject = userID
	}
	payload := map[string]string{"entry_id": entry.ID}
	for k, v := range data {
		payload[k] = v
	}
	publishBestEffort(ctx, s.publisher, s.log, events.New(eventType, subject, payload))
}
