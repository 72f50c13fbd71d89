package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/workpass/internal/database"
	"github.com/charlesng35/workpass/internal/models"
	"github.com/charlesng35/workpass/pkg/emaildomain"
	apperrors "github.com/charlesng35/workpass/pkg/errors"
	"github.com/charlesng35/workpass/pkg/logger"
)

var (
	// ErrCompanyNotFound is returned when a company lookup misses.
	ErrCompanyNotFound = apperrors.New("COMPANY_NOT_FOUND", "Company not found", http.StatusNotFound)
	// ErrCompanyDomainRequired rejects resolution without a domain.
	ErrCompanyDomainRequired = apperrors.New("COMPANY_DOMAIN_REQUIRED", "Company domain is required", http.StatusBadRequest)
)

// CompanySummary is a company with its member count, used by admin listings.
type CompanySummary struct {
	models.Company
	MemberCount int64 `json:"member_count"`
}

// CompanyService maps corporate domains onto company records.
type CompanyService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewCompanyService constructs a CompanyService.
func NewCompanyService(db *gorm.DB) (*CompanyService, error) {
	if db == nil {
		return nil, errors.New("company service: db is required")
	}
	return &CompanyService{db: db, log: logger.WithModule("companies")}, nil
}

// Resolve returns the ID of the company owning domain, creating it on first
// sight with a name derived from the domain. Concurrent first sightings
// converge on the same row: the loser of the insert race re-reads the winner.
func (s *CompanyService) Resolve(ctx context.Context, domain string) (string, error) {
	ctx = ensureContext(ctx)

	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return "", ErrCompanyDomainRequired
	}

	if id, err := s.findID(ctx, domain); err == nil {
		return id, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("company service: lookup %s: %w", domain, err)
	}

	company := models.Company{
		Domain: domain,
		Name:   emaildomain.DeriveCompanyName(domain),
	}
	err := s.db.WithContext(ctx).Create(&company).Error
	if err == nil {
		s.log.Info("company created", zap.String("company_id", company.ID), zap.String("domain", domain))
		return company.ID, nil
	}
	if !database.IsUniqueViolation(err) {
		return "", fmt.Errorf("company service: create %s: %w", domain, err)
	}

	id, err := s.findID(ctx, domain)
	if err != nil {
		return "", fmt.Errorf("company service: reread %s: %w", domain, err)
	}
	return id, nil
}

// ResolveEmail resolves the company for the domain part of email.
func (s *CompanyService) ResolveEmail(ctx context.Context, email string) (string, error) {
	return s.Resolve(ctx, emaildomain.ExtractDomain(email))
}

// Get loads a company by ID.
func (s *CompanyService) Get(ctx context.Context, id string) (*models.Company, error) {
	ctx = ensureContext(ctx)

	var company models.Company
	err := s.db.WithContext(ctx).First(&company, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCompanyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("company service: get company: %w", err)
	}
	return &company, nil
}

// List returns companies ordered by domain with their member counts.
func (s *CompanyService) List(ctx context.Context, page, perPage int) ([]CompanySummary, int64, error) {
	ctx = ensureContext(ctx)
	page, perPage = pageBounds(page, perPage)

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Company{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("company service: count companies: %w", err)
	}

	var companies []models.Company
	if err := s.db.WithContext(ctx).
		Order("domain ASC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&companies).Error; err != nil {
		return nil, 0, fmt.Errorf("company service: list companies: %w", err)
	}

	summaries := make([]CompanySummary, 0, len(companies))
	if len(companies) == 0 {
		return summaries, total, nil
	}

	ids := make([]string, 0, len(companies))
	for _, company := range companies {
		ids = append(ids, company.ID)
	}

	var counts []struct {
		CompanyID string
		Total     int64
	}
	if err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Select("company_id, COUNT(*) AS total").
		Where("company_id IN ?", ids).
		Group("company_id").
		Scan(&counts).Error; err != nil {
		return nil, 0, fmt.Errorf("company service: count members: %w", err)
	}

	byCompany := make(map[string]int64, len(counts))
	for _, row := range counts {
		byCompany[row.CompanyID] = row.Total
	}
	for _, company := range companies {
		summaries = append(summaries, CompanySummary{Company: company, MemberCount: byCompany[company.ID]})
	}

	return summaries, total, nil
}

// MemberCount returns how many users belong to the company.
func (s *CompanyService) MemberCount(ctx context.Context, id string) (int64, error) {
	ctx = ensureContext(ctx)

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("company_id = ?", id).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("company service: count members: %w", err)
	}
	return total, nil
}

func (s *CompanyService) findID(ctx context.Context, domain string) (string, error) {
	var company models.Company
	if err := s.db.WithContext(ctx).Select("id").Where("domain = ?", domain).Take(&company).Error; err != nil {
		return "", err
	}
	return company.ID, nil
}
