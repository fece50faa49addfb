package models

import (
	"time"

	"gorm.io/gorm"
)

// Device is an Expo push registration for a user.
type Device struct {
	gorm.Model
	Token      string `gorm:"not null;uniqueIndex:idx_token_user" json:"token"`
	UserID     uint   `gorm:"not null;index;uniqueIndex:idx_token_user" json:"user_id"`
	DeviceType string `gorm:"type:varchar(50)" json:"device_type"`
	DeviceName string `gorm:"type:varchar(100)" json:"device_name,omitempty"`
}

// NotificationEvent is the delivery log for scheduling events emitted to the
// notification sink. Delivery failures are recorded here, never surfaced to
// the scheduling operation that emitted the event.
type NotificationEvent struct {
	gorm.Model
	UserID  uint      `gorm:"index" json:"user_id"`
	Event   string    `gorm:"size:100;not null" json:"event"`
	Title   string    `json:"title"`
	Body    string    `json:"body"`
	Payload string    `gorm:"type:text" json:"payload,omitempty"`
	Status  string    `gorm:"type:varchar(20)" json:"status"` // sent, failed
	SentAt  time.Time `json:"sent_at"`
}
