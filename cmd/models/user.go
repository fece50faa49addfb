package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
	RoleAdmin   = "admin"
)

type User struct {
	gorm.Model
	FullName              string    `gorm:"column:full_name;size:255;not null" json:"full_name"`
	Email                 string    `gorm:"column:email;size:255;not null;uniqueIndex" json:"email"`
	PasswordHash          string    `gorm:"column:password_hash;size:255;not null" json:"-"`
	Role                  string    `gorm:"column:role;size:50;not null" json:"role"`
	Phone                 string    `gorm:"column:phone;size:20" json:"phone"`
	Refresh               string    `gorm:"column:refresh_token;size:255" json:"-"`
	RefreshTokenExpiredAt time.Time `gorm:"column:refresh_token_expired_at" json:"-"`

	Doctor *Doctor `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"doctor,omitempty"`
}

// Doctor is the professional profile attached to a user with the doctor role.
// Approved gates bookability; ConsultationFee is the live fee copied onto
// appointments at booking time.
type Doctor struct {
	gorm.Model
	UserID          uint    `gorm:"column:user_id;not null;uniqueIndex" json:"user_id"`
	Specialty       string  `gorm:"column:specialty;size:255" json:"specialty"`
	Bio             string  `gorm:"column:bio;type:text" json:"bio"`
	Approved        bool    `gorm:"column:approved;default:false" json:"approved"`
	ConsultationFee float64 `gorm:"column:consultation_fee;default:0" json:"consultation_fee"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (Doctor) TableName() string {
	return "doctors"
}
