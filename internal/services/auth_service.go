package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/workpass/internal/auth"
	"github.com/charlesng35/workpass/internal/models"
	apperrors "github.com/charlesng35/workpass/pkg/errors"
	"github.com/charlesng35/workpass/pkg/logger"
	"github.com/charlesng35/workpass/pkg/metrics"
)

// ErrAccountDisabled is returned when an admin has deactivated the account.
var ErrAccountDisabled = apperrors.New("ACCOUNT_DISABLED", "This account has been deactivated", http.StatusForbidden)

// LoginResult carries the issued token and the member it belongs to.
type LoginResult struct {
	AccessToken string             `json:"access_token"`
	ExpiresIn   int64              `json:"expires_in"`
	User        *models.User       `json:"user"`
	Access      models.AccessState `json:"access"`
}

// AuthService exchanges credentials for access tokens.
type AuthService struct {
	identities auth.IdentityProvider
	users      *UserService
	jwt        *auth.JWTService
	audit      *AuditService
	log        *zap.Logger
}

// NewAuthService constructs an AuthService.
func NewAuthService(identities auth.IdentityProvider, users *UserService, jwt *auth.JWTService, audit *AuditService) (*AuthService, error) {
	switch {
	case identities == nil:
		return nil, errors.New("auth service: identity provider is required")
	case users == nil:
		return nil, errors.New("auth service: user service is required")
	case jwt == nil:
		return nil, errors.New("auth service: jwt service is required")
	}
	return &AuthService{
		identities: identities,
		users:      users,
		jwt:        jwt,
		audit:      audit,
		log:        logger.WithModule("auth"),
	}, nil
}

// Login authenticates the credentials and issues an access token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	ctx = ensureContext(ctx)

	id, err := s.identities.Authenticate(ctx, email, password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrAccountLocked):
			metrics.AuthAttempts.WithLabelValues("locked").Inc()
		default:
			metrics.AuthAttempts.WithLabelValues("failure").Inc()
		}
		return nil, err
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		if errors.Is(err, ErrUserNotFound) {
			s.log.Error("identity without user profile", zap.String("identity_id", id))
			return nil, auth.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, ErrAccountDisabled
	}

	result, err := s.Issue(ctx, user)
	if err != nil {
		return nil, err
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	recordAudit(s.audit, ctx, AuditEntry{
		ActorID:    &user.ID,
		Action:     "auth.login",
		Resource:   "user",
		ResourceID: user.ID,
		Result:     AuditResultSuccess,
	})
	return result, nil
}

// Issue signs an access token for a user who has already proven their
// identity, such as right after signup, and stamps the login time.
func (s *AuthService) Issue(ctx context.Context, user *models.User) (*LoginResult, error) {
	ctx = ensureContext(ctx)
	if user == nil {
		return nil, ErrUserNotFound
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	token, err := s.jwt.GenerateAccessToken(auth.AccessTokenInput{UserID: user.ID, IsAdmin: user.IsAdmin})
	if err != nil {
		return nil, fmt.Errorf("auth service: issue token: %w", err)
	}

	if err := s.users.RecordLogin(ctx, user.ID); err != nil {
		s.log.Warn("record login failed", zap.String("user_id", user.ID), zap.Error(err))
	}

	return &LoginResult{
		AccessToken: token,
		ExpiresIn:   int64(s.jwt.TTL() / time.Second),
		User:        user,
		Access:      user.Access(),
	}, nil
}
