package models

import "time"

// WaitlistEntry is a pre-account application reviewed by an admin.
type WaitlistEntry struct {
	BaseModel

	CorporateEmail string  `gorm:"not null;size:320;index" json:"corporate_email"`
	PersonalEmail  string  `gorm:"not null;size:320" json:"personal_email"`
	LinkedInURL    *string `gorm:"column:linkedin_url" json:"linkedin_url,omitempty"`
	City           string  `json:"city"`

	Status     ReviewStatus `gorm:"size:16;not null;default:pending;index" json:"status"`
	Notes      string       `json:"notes,omitempty"`
	ReviewedBy *string      `gorm:"type:uuid" json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time   `json:"reviewed_at,omitempty"`

	ProvisionedUserID *string `gorm:"type:uuid" json:"provisioned_user_id,omitempty"`

	// PendingEmail holds CorporateEmail while pending; see ManualVerificationRequest.PendingUserID.
	PendingEmail *string `gorm:"size:320;uniqueIndex" json:"-"`
}
