package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationApprovalRequired NotificationType = "approval_required"
	NotificationRequestApproved  NotificationType = "request_approved"
	NotificationRequestRejected  NotificationType = "request_rejected"
)

type Notification struct {
	ID            uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID        `gorm:"type:uuid;not null;index" json:"user_id"`
	RequestID     uuid.UUID        `gorm:"type:uuid;not null;index" json:"request_id"`
	RequestNumber string           `gorm:"type:varchar(20)" json:"request_number"`
	Message       string           `gorm:"type:text;not null" json:"message"`
	Type          NotificationType `gorm:"type:varchar(30);not null" json:"type"`
	IsRead        bool             `gorm:"not null;index" json:"is_read"`
	CreatedAt     time.Time        `gorm:"index" json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	ensureID(&n.ID)
	return nil
}
