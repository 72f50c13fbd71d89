package auth

import (
	"context"
	"net/http"

	"github.com/charlesng35/workpass/internal/models"
	apperrors "github.com/charlesng35/workpass/pkg/errors"
)

var (
	// ErrInvalidCredentials is returned when the email/password pair does not match.
	ErrInvalidCredentials = apperrors.ErrInvalidCredentials
	// ErrAccountLocked signals too many failed password attempts.
	ErrAccountLocked = apperrors.New("ACCOUNT_LOCKED", "Account temporarily locked", http.StatusLocked)
	// ErrIdentityExists is returned when an identity already owns the email.
	ErrIdentityExists = apperrors.New("ACCOUNT_EXISTS", "An account with this email already exists", http.StatusConflict)
	// ErrIdentityNotFound is returned when no identity matches.
	ErrIdentityNotFound = apperrors.New("IDENTITY_NOT_FOUND", "Identity not found", http.StatusNotFound)
	// ErrPasswordNotHashed guards against plaintext reaching the credential store.
	ErrPasswordNotHashed = apperrors.New("PASSWORD_NOT_HASHED", "Credential must be pre-hashed", http.StatusInternalServerError)
)

// IdentityProvider owns login credentials. Identity IDs double as User IDs.
type IdentityProvider interface {
	// CreateIdentity stores a credential for email using an already-hashed password.
	CreateIdentity(ctx context.Context, email, passwordHash string) (string, error)
	// DeleteIdentity removes the credential. Deleting a missing identity is not an error.
	DeleteIdentity(ctx context.Context, id string) error
	// ConfirmIdentity marks the email as proven.
	ConfirmIdentity(ctx context.Context, id string) error
	// Authenticate returns the identity ID for a valid email/password pair.
	Authenticate(ctx context.Context, email, password string) (string, error)
	// SetPassword replaces the stored hash.
	SetPassword(ctx context.Context, id, passwordHash string) error
	// FindByEmail returns the identity registered for email.
	FindByEmail(ctx context.Context, email string) (*models.AuthIdentity, error)
}
