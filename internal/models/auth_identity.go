package models

import "time"

// AuthIdentity is the login credential owned by the local identity provider.
type AuthIdentity struct {
	BaseModel

	Email        string     `gorm:"uniqueIndex;not null;size:320" json:"email"`
	PasswordHash string     `gorm:"not null" json:"-"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`

	FailedAttempts int        `gorm:"not null;default:0" json:"-"`
	LockedUntil    *time.Time `json:"-"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
}
