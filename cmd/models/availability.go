package models

import (
	"time"

	"gorm.io/gorm"
)

// AvailabilityWindow is a doctor's recurring weekly open period.
// Weekday follows time.Weekday numbering (0 = Sunday). Times are clinic-local
// "HH:MM". Only enabled windows feed slot generation.
type AvailabilityWindow struct {
	gorm.Model
	DoctorID  uint   `gorm:"column:doctor_id;not null;index:idx_windows_doctor_weekday" json:"doctor_id"`
	Weekday   int    `gorm:"column:weekday;not null;index:idx_windows_doctor_weekday" json:"weekday"`
	StartTime string `gorm:"column:start_time;size:5;not null" json:"start_time"`
	EndTime   string `gorm:"column:end_time;size:5;not null" json:"end_time"`
	// no column default: a zero-value false must survive the insert
	Enabled   bool   `gorm:"column:enabled" json:"enabled"`

	Doctor *User `gorm:"foreignKey:DoctorID" json:"-"`
}

func (AvailabilityWindow) TableName() string {
	return "availability_windows"
}

// UnavailabilityRange blocks bookings over an absolute time range
// (vacation, emergency). Kept after it expires for history.
type UnavailabilityRange struct {
	gorm.Model
	DoctorID uint      `gorm:"column:doctor_id;not null;index" json:"doctor_id"`
	StartsAt time.Time `gorm:"column:starts_at;not null" json:"starts_at"`
	EndsAt   time.Time `gorm:"column:ends_at;not null" json:"ends_at"`
	Reason   string    `gorm:"column:reason;size:255" json:"reason"`

	Doctor *User `gorm:"foreignKey:DoctorID" json:"-"`
}

func (UnavailabilityRange) TableName() string {
	return "unavailability_ranges"
}
