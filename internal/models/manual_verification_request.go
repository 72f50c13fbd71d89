package models

import "time"

// ManualVerificationRequest is a user-submitted proof of employment awaiting
// admin review.
type ManualVerificationRequest struct {
	BaseModel

	UserID string `gorm:"type:uuid;not null;index" json:"user_id"`
	User   *User  `gorm:"constraint:OnDelete:CASCADE" json:"user,omitempty"`

	CorporateEmail string  `gorm:"not null;size:320" json:"corporate_email"`
	LinkedInURL    *string `gorm:"column:linkedin_url" json:"linkedin_url,omitempty"`
	ProofDocument  *string `json:"proof_document,omitempty"`

	Status     ReviewStatus `gorm:"size:16;not null;default:pending;index" json:"status"`
	AdminNotes string       `json:"admin_notes,omitempty"`
	ReviewedBy *string      `gorm:"type:uuid" json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time   `json:"reviewed_at,omitempty"`

	// PendingUserID mirrors UserID while the request is pending and is cleared
	// on review, so the unique index admits one open request per user.
	PendingUserID *string `gorm:"type:uuid;uniqueIndex" json:"-"`
}
