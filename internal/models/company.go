package models

// Company is created lazily the first time a corporate domain is seen.
type Company struct {
	BaseModel

	Domain string `gorm:"uniqueIndex;not null;size:253" json:"domain"`
	Name   string `gorm:"not null" json:"name"`
}
