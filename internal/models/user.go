package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VerificationMethod records how a user proved employment.
type VerificationMethod string

const (
	VerificationNone   VerificationMethod = "none"
	VerificationOTP    VerificationMethod = "otp"
	VerificationManual VerificationMethod = "manual"
)

// ErrOnboardedUnverified is returned when a user would be onboarded without being verified.
var ErrOnboardedUnverified = errors.New("user: onboarded requires verified")

// User is the marketplace identity. Its ID equals the ID of the AuthIdentity
// holding the login credential.
type User struct {
	ID    string `gorm:"primaryKey;type:uuid" json:"id"`
	Email string `gorm:"uniqueIndex;not null;size:320" json:"email"`

	SecondaryEmail *string `gorm:"size:320" json:"secondary_email,omitempty"`
	PersonalEmail  *string `gorm:"size:320" json:"personal_email,omitempty"`
	LinkedInURL    *string `gorm:"column:linkedin_url" json:"linkedin_url,omitempty"`

	FirstName string `gorm:"not null" json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	City      string `gorm:"index" json:"city"`

	CompanyID *string  `gorm:"type:uuid;index" json:"company_id"`
	Company   *Company `gorm:"constraint:OnDelete:SET NULL" json:"company,omitempty"`

	IsVerified         bool               `gorm:"not null;default:false" json:"is_verified"`
	Onboarded          bool               `gorm:"not null;default:false" json:"onboarded"`
	IsActive           bool               `gorm:"not null;default:true" json:"is_active"`
	IsAdmin            bool               `gorm:"not null;default:false" json:"is_admin"`
	VerificationMethod VerificationMethod `gorm:"size:16;not null;default:none" json:"verification_method"`
	VerifiedAt         *time.Time         `json:"verified_at,omitempty"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.VerificationMethod == "" {
		u.VerificationMethod = VerificationNone
	}
	return nil
}

// BeforeSave rejects states that break the onboarding invariant.
func (u *User) BeforeSave(tx *gorm.DB) error {
	return u.Validate()
}

// Validate checks the onboarded => verified invariant.
func (u *User) Validate() error {
	if u.Onboarded && !u.IsVerified {
		return ErrOnboardedUnverified
	}
	return nil
}

// AccessState is the feature gate derived from a user's flags.
type AccessState struct {
	CanBrowseFeed     bool `json:"can_browse_feed"`
	CanMessage        bool `json:"can_message"`
	CanPost           bool `json:"can_post"`
	NeedsVerification bool `json:"needs_verification"`
	NeedsOnboarding   bool `json:"needs_onboarding"`
}

// Access derives the gate consumed by feed, messaging, and posting features.
func (u *User) Access() AccessState {
	if u == nil || !u.IsActive {
		return AccessState{}
	}
	full := u.IsVerified && u.Onboarded
	return AccessState{
		CanBrowseFeed:     full,
		CanMessage:        full,
		CanPost:           full,
		NeedsVerification: !u.IsVerified,
		NeedsOnboarding:   u.IsVerified && !u.Onboarded,
	}
}
