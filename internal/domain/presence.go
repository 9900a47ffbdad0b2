package domain

import (
	"time"

	"github.com/google/uuid"
)

type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceAway    PresenceStatus = "away"
	PresenceOffline PresenceStatus = "offline"
)

// IsValid reports whether s is one of the three known statuses.
func (s PresenceStatus) IsValid() bool {
	switch s {
	case PresenceOnline, PresenceAway, PresenceOffline:
		return true
	}
	return false
}

// UserPresence is the last known activity state of a user. There is exactly one
// row per user; every report replaces it.
type UserPresence struct {
	UserID       uuid.UUID      `gorm:"type:uuid;primaryKey" json:"userId"`
	Status       PresenceStatus `gorm:"type:varchar(16);not null;default:'online';index:idx_presence_status_active,priority:1" json:"status"`
	LastActiveAt time.Time      `gorm:"not null;index:idx_presence_status_active,priority:2" json:"lastActiveAt"`
	PagePath     *string        `gorm:"type:text" json:"pagePath,omitempty"`
	UserAgent    *string        `gorm:"type:text" json:"userAgent,omitempty"`
	CountryCode  *string        `gorm:"type:varchar(2)" json:"countryCode,omitempty"`
	CountryName  *string        `gorm:"type:varchar(100)" json:"countryName,omitempty"`
	City         *string        `gorm:"type:varchar(100)" json:"city,omitempty"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

func (UserPresence) TableName() string {
	return "user_presence"
}

// GeoLocation is the coarse location resolved from a caller IP.
type GeoLocation struct {
	CountryCode string `json:"country_code"`
	CountryName string `json:"country_name"`
	City        string `json:"city"`
}

// PresenceReport is the input of a single presence update.
type PresenceReport struct {
	UserID    uuid.UUID
	Status    PresenceStatus
	PagePath  string
	UserAgent string
	ClientIP  string
	// Channel is "request" for regular reports and "beacon" for unload delivery.
	Channel string
}

// PresenceEvent is published after a report has been stored.
type PresenceEvent struct {
	Type       string         `json:"type"`
	UserID     uuid.UUID      `json:"userId"`
	Status     PresenceStatus `json:"status"`
	PagePath   string         `json:"pagePath,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}
