package domain

import (
	"time"

	"github.com/google/uuid"
)

// Profile is the product-wide user profile. This service only writes the
// location and last-seen columns; the rest is owned by the web application.
type Profile struct {
	UserID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"userId"`
	Name               *string    `gorm:"type:varchar(255)" json:"name,omitempty"`
	OnboardingComplete bool       `gorm:"not null;default:false" json:"onboardingComplete"`
	LastSeenAt         *time.Time `json:"lastSeenAt,omitempty"`
	CountryCode        *string    `gorm:"type:varchar(2)" json:"countryCode,omitempty"`
	CountryName        *string    `gorm:"type:varchar(100)" json:"countryName,omitempty"`
	City               *string    `gorm:"type:varchar(100)" json:"city,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

func (Profile) TableName() string {
	return "profiles"
}

// Opportunity is a tax opportunity surfaced to the user by the dashboard.
type Opportunity struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index:idx_opportunities_user_read,priority:1" json:"userId"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	IsRead    bool      `gorm:"not null;default:false;index:idx_opportunities_user_read,priority:2" json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Opportunity) TableName() string {
	return "user_opportunities"
}

// TaxScore is the user's computed "Score Tributário" (0-1000).
type TaxScore struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"userId"`
	Score     float64   `gorm:"not null;default:0" json:"score"`
	Grade     *string   `gorm:"type:varchar(4)" json:"grade,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `gorm:"index" json:"updatedAt"`
}

func (TaxScore) TableName() string {
	return "tax_scores"
}
