package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	AppointmentPending   = "pending"
	AppointmentConfirmed = "confirmed"
	AppointmentCompleted = "completed"
	AppointmentCancelled = "cancelled"
	AppointmentNoShow    = "no_show"
)

const (
	ConsultationInitial  = "initial"
	ConsultationFollowUp = "follow_up"
)

// Appointment is never deleted; cancellation is a status. The slot it occupies
// is (doctor_id, date, start_time), guarded by a partial unique index over
// non-cancelled rows (see db.EnsureBookingIndex).
type Appointment struct {
	gorm.Model
	Reference       string    `gorm:"column:reference;size:36;uniqueIndex" json:"reference"`
	PatientID       uint      `gorm:"column:patient_id;not null;index" json:"patient_id"`
	DoctorID        uint      `gorm:"column:doctor_id;not null;index" json:"doctor_id"`
	Date            time.Time `gorm:"column:date;not null" json:"date"`
	StartTime       string    `gorm:"column:start_time;size:5;not null" json:"start_time"`
	DurationMinutes int       `gorm:"column:duration_minutes;not null;default:30" json:"duration_minutes"`
	Status          string    `gorm:"column:status;size:20;not null;default:'pending'" json:"status"`
	Type            string    `gorm:"column:type;size:50" json:"type"`
	ChiefComplaint  string    `gorm:"column:chief_complaint;type:text" json:"chief_complaint,omitempty"`

	// FeeAmount is stamped from the doctor's consultation fee at creation and
	// never updated afterwards.
	FeeAmount  float64 `gorm:"column:fee_amount;not null" json:"fee_amount"`
	IsPaid     bool    `gorm:"column:is_paid;default:false" json:"is_paid"`
	PaymentRef string  `gorm:"column:payment_ref;size:64" json:"payment_ref,omitempty"`

	ConfirmedAt        *time.Time `gorm:"column:confirmed_at" json:"confirmed_at,omitempty"`
	CancelledAt        *time.Time `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`
	CompletedAt        *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CancelledBy        *uint      `gorm:"column:cancelled_by" json:"cancelled_by,omitempty"`
	CancellationReason string     `gorm:"column:cancellation_reason;size:255" json:"cancellation_reason,omitempty"`

	Notes           string `gorm:"column:notes;type:text" json:"notes,omitempty"`
	Recommendations string `gorm:"column:recommendations;type:text" json:"recommendations,omitempty"`

	Patient *User `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	Doctor  *User `gorm:"foreignKey:DoctorID" json:"doctor,omitempty"`
}

// IsTerminal reports whether no further status transition is permitted.
func (a *Appointment) IsTerminal() bool {
	switch a.Status {
	case AppointmentCompleted, AppointmentCancelled, AppointmentNoShow:
		return true
	}
	return false
}
