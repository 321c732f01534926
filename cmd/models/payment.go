package models

import (
	"gorm.io/gorm"
)

// PaymentAttempt is an audit row written for every gateway callback,
// successful or not. Failed attempts never flip the appointment's payment
// flag; they only accumulate here.
type PaymentAttempt struct {
	gorm.Model
	AppointmentID uint    `gorm:"column:appointment_id;index" json:"appointment_id"`
	OrderID       string  `gorm:"column:order_id;size:64;index" json:"order_id"`
	TransactionID string  `gorm:"column:transaction_id;size:64" json:"transaction_id"`
	Amount        float64 `gorm:"column:amount" json:"amount"`
	Success       bool    `gorm:"column:success" json:"success"`
	Message       string  `gorm:"column:message;type:text" json:"message,omitempty"`
	Payload       string  `gorm:"column:payload;type:text" json:"payload,omitempty"`
}
