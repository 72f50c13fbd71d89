package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charlesng35/workpass/internal/auth"
	"github.com/charlesng35/workpass/internal/models"
	"github.com/charlesng35/workpass/pkg/crypto"
	"github.com/charlesng35/workpass/pkg/emaildomain"
	"github.com/charlesng35/workpass/pkg/logger"
)

// AdminSeed describes the operator account created on first start.
type AdminSeed struct {
	Email     string
	Password  string
	FirstName string
}

// EnsureAdmin provisions the seed admin unless an identity already owns its
// email. An empty seed email is a no-op. The returned bool reports whether an
// account was created.
func EnsureAdmin(ctx context.Context, identities auth.IdentityProvider, provisioner *Provisioner, seed AdminSeed) (bool, error) {
	ctx = ensureContext(ctx)

	email := emaildomain.NormalizeEmail(seed.Email)
	if email == "" {
		return false, nil
	}
	if identities == nil || provisioner == nil {
		return false, errors.New("admin bootstrap: identity provider and provisioner are required")
	}
	if len(seed.Password) < minPasswordLength {
		return false, fmt.Errorf("admin bootstrap: %w", ErrWeakPassword)
	}

	_, err := identities.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, auth.ErrIdentityNotFound):
	default:
		return false, fmt.Errorf("admin bootstrap: lookup identity: %w", err)
	}

	firstName := strings.TrimSpace(seed.FirstName)
	if !emaildomain.ValidateFirstName(firstName) {
		firstName = "Admin"
	}

	hash, err := crypto.HashPassword(seed.Password)
	if err != nil {
		return false, fmt.Errorf("admin bootstrap: hash password: %w", err)
	}

	user, err := provisioner.Provision(ctx, ProvisionInput{
		Email:        email,
		PasswordHash: hash,
		FirstName:    firstName,
		Verified:     true,
		Onboarded:    true,
		Method:       models.VerificationManual,
		IsAdmin:      true,
		Source:       "bootstrap",
	})
	if err != nil {
		if errors.Is(err, auth.ErrIdentityExists) {
			return false, nil
		}
		return false, fmt.Errorf("admin bootstrap: %w", err)
	}

	logger.WithModule("bootstrap").Info("seed admin created", logger.Email("email", user.Email))
	return true, nil
}
