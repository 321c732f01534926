package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	FullName              string    `gorm:"column:full_name;size:255;not null" json:"full_name"`
	Email                 string    `gorm:"column:email;size:255;uniqueIndex;not null" json:"email"`
	PasswordHash          string    `gorm:"column:password_hash;size:255;not null" json:"-"`
	Phone                 string    `gorm:"column:phone;size:20" json:"phone"`
	Gender                string    `gorm:"column:gender;size:20" json:"gender"`
	BirthDate             string    `gorm:"column:birth_date;size:20" json:"birth_date"`
	Address               Address   `gorm:"column:address;type:jsonb" json:"address"`
	Image                 string    `gorm:"column:image;size:255" json:"image"`
	EmailVerified         bool      `gorm:"column:email_verified;default:false" json:"email_verified"`
	EmailVerificationCode string    `gorm:"column:email_verification_code;size:6" json:"-"`
	VerificationExpiry    time.Time `gorm:"column:verification_expiry" json:"-"`
	RefreshToken          string    `gorm:"column:refresh_token;size:255" json:"-"`
	RefreshTokenExpiredAt time.Time `gorm:"column:refresh_token_expired_at" json:"-"`
}
