package models

import "time"

// DefaultLeadSite is recorded when the client does not name a site.
const DefaultLeadSite = "faceshapedetector"

// Lead is one captured email address, unique per (email, site).
type Lead struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex:idx_leads_email_site;size:320;not null" json:"email"`
	Site      string    `gorm:"uniqueIndex:idx_leads_email_site;size:120;not null" json:"site"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the default pluralized name.
func (Lead) TableName() string {
	return "leads"
}
