package models

import (
	"gorm.io/gorm"
)

// ContactMessage is a contact-form submission handled through the admin inbox.
type ContactMessage struct {
	gorm.Model
	Name    string `gorm:"column:name;size:255;not null" json:"name"`
	Email   string `gorm:"column:email;size:255;not null" json:"email"`
	Subject string `gorm:"column:subject;size:255" json:"subject"`
	Body    string `gorm:"column:body;type:text;not null" json:"body"`
	IsRead  bool   `gorm:"column:is_read;default:false" json:"is_read"`
}
