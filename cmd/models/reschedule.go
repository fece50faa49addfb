package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	ReschedulePending    = "pending"
	RescheduleApproved   = "approved"
	RescheduleRejected   = "rejected"
	RescheduleSuperseded = "superseded"
)

// RescheduleRequest proposes a new date/time for an existing appointment.
// A newer proposal for the same appointment supersedes any pending one, so at
// most one request per appointment is pending at a time.
type RescheduleRequest struct {
	gorm.Model
	AppointmentID uint      `gorm:"column:appointment_id;not null;index" json:"appointment_id"`
	RequestedBy   uint      `gorm:"column:requested_by;not null" json:"requested_by"`
	NewDate       time.Time `gorm:"column:new_date;not null" json:"new_date"`
	NewStartTime  string    `gorm:"column:new_start_time;size:5;not null" json:"new_start_time"`
	Reason        string    `gorm:"column:reason;size:255" json:"reason"`
	Status        string    `gorm:"column:status;size:20;not null;default:'pending'" json:"status"`
	ResponseNotes string    `gorm:"column:response_notes;size:255" json:"response_notes,omitempty"`

	RespondedBy *uint      `gorm:"column:responded_by" json:"responded_by,omitempty"`
	RespondedAt *time.Time `gorm:"column:responded_at" json:"responded_at,omitempty"`

	Appointment *Appointment `gorm:"foreignKey:AppointmentID" json:"appointment,omitempty"`
}

func (RescheduleRequest) TableName() string {
	return "reschedule_requests"
}
