package models

import "time"

// SignupIntent stages credentials from a signup that stalled before
// verification so an approval can provision the account later.
type SignupIntent struct {
	Email        string    `gorm:"primaryKey;size:320" json:"email"`
	FirstName    string    `gorm:"not null" json:"first_name"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
