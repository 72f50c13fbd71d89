package models

import "time"

// OneTimeCode holds the live verification code for an email address. The
// primary key on Email keeps at most one live row per address.
type OneTimeCode struct {
	Email     string    `gorm:"primaryKey;size:320" json:"email"`
	CodeHash  string    `gorm:"not null" json:"-"`
	Attempts  int       `gorm:"not null;default:0" json:"attempts"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the code is past its expiry at now.
func (c *OneTimeCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
