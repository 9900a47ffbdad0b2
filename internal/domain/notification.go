package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// NotificationCategory tags notifications so scanners can deduplicate per category.
type NotificationCategory string

const (
	CategorySaudade       NotificationCategory = "saudade"
	CategoryStaleScore    NotificationCategory = "score_desatualizado"
	CategoryRecalculation NotificationCategory = "recalculo_necessario"
)

// Notification is an in-app notification read by the dashboard inbox.
// Rows created by scanners are never mutated afterwards except for the read flag.
type Notification struct {
	ID        uuid.UUID            `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID            `gorm:"type:uuid;not null;index:idx_notifications_user_category_created,priority:1" json:"userId"`
	Title     string               `gorm:"type:varchar(255);not null" json:"title"`
	Message   string               `gorm:"type:text;not null" json:"message"`
	Category  NotificationCategory `gorm:"type:varchar(50);not null;index:idx_notifications_user_category_created,priority:2" json:"category"`
	ActionURL *string              `gorm:"type:varchar(500)" json:"actionUrl,omitempty"`
	Metadata  datatypes.JSON       `gorm:"type:jsonb" json:"metadata,omitempty"`
	IsRead    bool                 `gorm:"not null;default:false" json:"isRead"`
	ReadAt    *time.Time           `json:"readAt,omitempty"`
	CreatedAt time.Time            `gorm:"not null;index:idx_notifications_user_category_created,priority:3" json:"createdAt"`
}

func (Notification) TableName() string {
	return "notifications"
}

type PaginatedNotifications struct {
	Notifications []Notification `json:"notifications"`
	Total         int64          `json:"total"`
	Page          int            `json:"page"`
	Limit         int            `json:"limit"`
	HasMore       bool           `json:"hasMore"`
}

type UnreadCount struct {
	Count int64 `json:"count"`
}
