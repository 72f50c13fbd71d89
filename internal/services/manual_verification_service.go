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

	"github.com/charlesng35/workpass/internal/database"
	"github.com/charlesng35/workpass/internal/events"
	"github.com/charlesng35/workpass/internal/models"
	"github.com/charlesng35/workpass/pkg/emaildomain"
	apperrors "github.com/charlesng35/workpass/pkg/errors"
	"github.com/charlesng35/workpass/pkg/logger"
	"github.com/charlesng35/workpass/pkg/metrics"
)

var (
	ErrRequestNotFound = apperrors.New("REQUEST_NOT_FOUND", "Verification request not found", http.StatusNotFound)
	// ErrAlreadyTerminal is returned when a reviewed record is reviewed again.
	ErrAlreadyTerminal = apperrors.New("ALREADY_TERMINAL", "This record has already been reviewed", http.StatusConflict)
	// ErrAlreadyVerified rejects manual requests from verified users.
	ErrAlreadyVerified = apperrors.New("ALREADY_VERIFIED", "Your account is already verified", http.StatusConflict)
	// ErrRequestPending allows a single open request per user.
	ErrRequestPending = apperrors.New("REQUEST_PENDING", "You already have a verification request under review", http.StatusConflict)
	// ErrProofRequired demands a LinkedIn profile or a proof document.
	ErrProofRequired = apperrors.New("PROOF_REQUIRED", "Provide a LinkedIn profile or a proof document", http.StatusBadRequest)
)

const reviewQueueManual = "manual"

// ManualRequestInput is what a member submits for manual review.
type ManualRequestInput struct {
	CorporateEmail string  `json:"corporate_email" validate:"required,email,corporate_email"`
	LinkedInURL    *string `json:"linkedin_url" validate:"omitempty,linkedin_url"`
	ProofDocument  *string `json:"proof_document" validate:"omitempty,max=2048"`
}

// ReviewListOptions filters an admin review queue.
type ReviewListOptions struct {
	Status   models.ReviewStatus
	Page     int
	PageSize int
}

// ManualVerificationService runs the admin-reviewed verification path for
// members whose corporate mailbox cannot receive a code.
type ManualVerificationService struct {
	db        *gorm.DB
	companies *CompanyService
	notifier  Notifier
	publisher events.Publisher
	audit     *AuditService
	now       func() time.Time
	log       *zap.Logger
}

// ManualVerificationOption customises the ManualVerificationService.
type ManualVerificationOption func(*ManualVerificationService)

// WithManualClock overrides the clock used for review timestamps.
func WithManualClock(now func() time.Time) ManualVerificationOption {
	return func(s *ManualVerificationService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithManualPublisher emits review events.
func WithManualPublisher(publisher events.Publisher) ManualVerificationOption {
	return func(s *ManualVerificationService) {
		s.publisher = publisher
	}
}

// WithManualAudit records review decisions.
func WithManualAudit(audit *AuditService) ManualVerificationOption {
	return func(s *ManualVerificationService) {
		s.audit = audit
	}
}

// NewManualVerificationService constructs a ManualVerificationService.
func NewManualVerificationService(db *gorm.DB, companies *CompanyService, notifier Notifier, opts ...ManualVerificationOption) (*ManualVerificationService, error) {
	if db == nil {
		return nil, errors.New("manual verification service: db is required")
	}
	if companies == nil {
		return nil, errors.New("manual verification service: company service is required")
	}

	svc := &ManualVerificationService{
		db:        db,
		companies: companies,
		notifier:  notifier,
		now:       time.Now,
		log:       logger.WithModule("manual_verification"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Submit files a pending request for userID and returns its ID.
func (s *ManualVerificationService) Submit(ctx context.Context, userID string, input ManualRequestInput) (string, error) {
	ctx = ensureContext(ctx)

	email := emaildomain.NormalizeEmail(input.CorporateEmail)
	if !emaildomain.IsCorporateEmail(email) {
		return "", ErrNotCorporateEmail
	}
	linkedIn := optionalString(derefString(input.LinkedInURL))
	proof := optionalString(derefString(input.ProofDocument))
	if linkedIn == nil && proof == nil {
		return "", ErrProofRequired
	}

	var user models.User
	err := s.db.WithContext(ctx).Select("id", "is_verified").First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("manual verification service: load user: %w", err)
	}
	if user.IsVerified {
		return "", ErrAlreadyVerified
	}

	pending := user.ID
	request := models.ManualVerificationRequest{
		UserID:         user.ID,
		CorporateEmail: email,
		LinkedInURL:    linkedIn,
		ProofDocument:  proof,
		Status:         models.ReviewPending,
		PendingUserID:  &pending,
	}
	if err := s.db.WithContext(ctx).Create(&request).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return "", ErrRequestPending
		}
		return "", fmt.Errorf("manual verification service: create request: %w", err)
	}

	s.log.Info("manual verification submitted",
		zap.String("request_id", request.ID),
		zap.String("user_id", user.ID),
	)
	publishBestEffort(ctx, s.publisher, s.log, events.New(events.TypeManualSubmitted, user.ID, map[string]string{
		"request_id": request.ID,
	}))

	return request.ID, nil
}

// Approve verifies the requesting user. The status transition and the user
// upgrade commit together; a request reviewed concurrently yields
// ErrAlreadyTerminal and no side effects.
func (s *ManualVerificationService) Approve(ctx context.Context, adminID, requestID, notes string) (err error) {
	ctx, finish := startSpan(ctx, "ManualVerificationService.Approve")
	defer func() { finish(err) }()

	request, err := s.loadPending(ctx, requestID)
	if err != nil {
		return err
	}

	companyID, err := s.companies.ResolveEmail(ctx, request.CorporateEmail)
	if err != nil {
		return fmt.Errorf("manual verification service: resolve company: %w", err)
	}

	now := s.now()
	var user models.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := transitionRequest(tx, request.ID, models.ReviewApproved, adminID, notes, now); err != nil {
			return err
		}

		result := tx.Model(&models.User{}).Where("id = ?", request.UserID).Updates(map[string]any{
			"secondary_email":     request.CorporateEmail,
			"company_id":          companyID,
			"is_verified":         true,
			"verification_method": models.VerificationManual,
			"verified_at":         now,
		})
		if result.Error != nil {
			return fmt.Errorf("manual verification service: upgrade user: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrUserNotFound
		}
		return tx.First(&user, "id = ?", request.UserID).Error
	})
	if err != nil {
		return err
	}

	metrics.ReviewDecisions.WithLabelValues(reviewQueueManual, string(models.ReviewApproved)).Inc()
	s.log.Info("manual verification approved",
		zap.String("request_id", request.ID),
		zap.String("user_id", user.ID),
		zap.String("admin_id", adminID),
	)
	s.afterReview(ctx, adminID, request, models.ReviewApproved, companyID)
	notifyBestEffort(ctx, s.notifier, s.log, NotifyManualApproved, user.Email, map[string]string{
		"first_name":      user.FirstName,
		"corporate_email": request.CorporateEmail,
	})
	return nil
}

// Reject closes the request without touching the user.
func (s *ManualVerificationService) Reject(ctx context.Context, adminID, requestID, notes string) (err error) {
	ctx, finish := startSpan(ctx, "ManualVerificationService.Reject")
	defer func() { finish(err) }()

	request, err := s.loadPending(ctx, requestID)
	if err != nil {
		return err
	}

	if err := transitionRequest(s.db.WithContext(ctx), request.ID, models.ReviewRejected, adminID, notes, s.now()); err != nil {
		return err
	}

	metrics.ReviewDecisions.WithLabelValues(reviewQueueManual, string(models.ReviewRejected)).Inc()
	s.log.Info("manual verification rejected",
		zap.String("request_id", request.ID),
		zap.String("admin_id", adminID),
	)
	s.afterReview(ctx, adminID, request, models.ReviewRejected, "")

	var user models.User
	if err := s.db.WithContext(ctx).Select("id", "email").First(&user, "id = ?", request.UserID).Error; err != nil {
		s.log.Warn("rejection notice skipped, user not loaded", zap.String("user_id", request.UserID), zap.Error(err))
		return nil
	}
	notifyBestEffort(ctx, s.notifier, s.log, NotifyManualRejected, user.Email, map[string]string{
		"notes": strings.TrimSpace(notes),
	})
	return nil
}

// Get loads a request with its user.
func (s *ManualVerificationService) Get(ctx context.Context, id string) (*models.ManualVerificationRequest, error) {
	ctx = ensureContext(ctx)

	var request models.ManualVerificationRequest
	err := s.db.WithContext(ctx).Preload("User").First(&request, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("manual verification service: get request: %w", err)
	}
	return &request, nil
}

// List returns the review queue, oldest first so admins work in arrival order.
func (s *ManualVerificationService) List(ctx context.Context, opts ReviewListOptions) ([]models.ManualVerificationRequest, int64, error) {
	ctx = ensureContext(ctx)
	page, perPage := pageBounds(opts.Page, opts.PageSize)

	query := s.db.WithContext(ctx).Model(&models.ManualVerificationRequest{})
	if opts.Status != "" {
		query = query.Where("status = ?", opts.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("manual verification service: count requests: %w", err)
	}

	var requests []models.ManualVerificationRequest
	if err := query.
		Preload("User").
		Order("created_at ASC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&requests).Error; err != nil {
		return nil, 0, fmt.Errorf("manual verification service: list requests: %w", err)
	}
	return requests, total, nil
}

// ListForUser returns a member's own requests, newest first.
func (s *ManualVerificationService) ListForUser(ctx context.Context, userID string) ([]models.ManualVerificationRequest, error) {
	ctx = ensureContext(ctx)

	var requests []models.ManualVerificationRequest
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("manual verification service: list user requests: %w", err)
	}
	return requests, nil
}

func (s *ManualVerificationService) loadPending(ctx context.Context, id string) (*models.ManualVerificationRequest, error) {
	var request models.ManualVerificationRequest
	err := s.db.WithContext(ctx).First(&request, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("manual verification service: load request: %w", err)
	}
	if request.Status.Terminal() {
		return nil, ErrAlreadyTerminal
	}
	return &request, nil
}

func (s *ManualVerificationService) afterReview(ctx context.Context, adminID string, request *models.ManualVerificationRequest, decision models.ReviewStatus, companyID string) {
	recordAudit(s.audit, ctx, AuditEntry{
		ActorID:    optionalString(adminID),
		Action:     "verification.manual." + string(decision),
		Resource:   "manual_verification_request",
		ResourceID: request.ID,
		Result:     AuditResultSuccess,
		Metadata:   map[string]any{"user_id": request.UserID},
	})

	eventType := events.TypeManualRejected
	data := map[string]string{"request_id": request.ID}
	if decision == models.ReviewApproved {
		eventType = events.TypeManualApproved
		data["company_id"] = companyID
	}
	publishBestEffort(ctx, s.publisher, s.log, events.New(eventType, request.UserID, data))
}

// transitionRequest moves a pending request to a terminal status. The WHERE
// on status makes concurrent reviews race for a single row update.
func transitionRequest(tx *gorm.DB, id string, status models.ReviewStatus, adminID, notes string, now time.Time) error {
	result := tx.Model(&models.ManualVerificationRequest{}).
		Where("id = ? AND status = ?", id, models.ReviewPending).
		Updates(map[string]any{
			"status":          status,
			"admin_notes":     strings.TrimSpace(notes),
			"reviewed_by":     optionalString(adminID),
			"reviewed_at":     now,
			"pending_user_id": nil,
		})
	if result.Error != nil {
		return fmt.Errorf("manual verification service: transition request: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyTerminal
	}
	return nil
}
