package models

import (
	"gorm.io/gorm"
)

// Payment records money received against an appointment. The appointment's
// fee_amount stays authoritative; payments are an audit trail for reports.
type Payment struct {
	gorm.Model
	AppointmentID uint    `gorm:"column:appointment_id;not null;index" json:"appointment_id"`
	PatientID     uint    `gorm:"column:patient_id;not null" json:"patient_id"`
	Amount        float64 `gorm:"column:amount;type:float;not null" json:"amount"`
	Method        string  `gorm:"column:method;size:50;not null" json:"method"`
	Reference     string  `gorm:"column:reference;size:64" json:"reference"`

	Appointment *Appointment `gorm:"foreignKey:AppointmentID" json:"appointment,omitempty"`
	Patient     *User        `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
}
