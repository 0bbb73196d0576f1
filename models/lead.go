package models

import "gorm.io/gorm"

// Lead represents a single contact/business record
type Lead struct {
	gorm.Model
	UserID uint `gorm:"index" json:"user_id"`

	Email     string `gorm:"index" json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Location  string `json:"location"`
	Website   string `json:"website"`
	Phone     string `json:"phone"`
}

// MergeFields returns the values substituted into step templates.
func (l Lead) MergeFields() map[string]string {
	return map[string]string{
		"business_name": l.Company,
		"first_name":    l.FirstName,
		"city":          l.Location,
		"website":       l.Website,
	}
}
