package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// DoctorSnapshot is the doctor's profile as it was at booking time. It is
// written once and never refreshed, so later profile edits do not change
// historical appointments. Secret fields are stripped before snapshotting.
type DoctorSnapshot struct {
	ID         uint    `json:"id"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Image      string  `json:"image"`
	Speciality string  `json:"speciality"`
	Degree     string  `json:"degree"`
	Experience string  `json:"experience"`
	About      string  `json:"about"`
	Fees       float64 `json:"fees"`
	Address    Address `json:"address"`
}

func NewDoctorSnapshot(d *Doctor) DoctorSnapshot {
	return DoctorSnapshot{
		ID:         d.ID,
		Name:       d.Name,
		Email:      d.Email,
		Image:      d.Image,
		Speciality: d.Speciality,
		Degree:     d.Degree,
		Experience: d.Experience,
		About:      d.About,
		Fees:       d.Fees,
		Address:    d.Address,
	}
}

func (s DoctorSnapshot) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *DoctorSnapshot) Scan(value interface{}) error {
	return scanJSON(value, s)
}

// PatientSnapshot mirrors DoctorSnapshot for the booking patient.
type PatientSnapshot struct {
	ID        uint    `json:"id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Phone     string  `json:"phone"`
	Gender    string  `json:"gender"`
	BirthDate string  `json:"birth_date"`
	Image     string  `json:"image"`
	Address   Address `json:"address"`
}

func NewPatientSnapshot(u *User) PatientSnapshot {
	return PatientSnapshot{
		ID:        u.ID,
		Name:      u.FullName,
		Email:     u.Email,
		Phone:     u.Phone,
		Gender:    u.Gender,
		BirthDate: u.BirthDate,
		Image:     u.Image,
		Address:   u.Address,
	}
}

func (s PatientSnapshot) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *PatientSnapshot) Scan(value interface{}) error {
	return scanJSON(value, s)
}

func scanJSON(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return errors.New("unsupported source type for jsonb column")
	}
}

type Appointment struct {
	gorm.Model
	UserID              uint            `gorm:"column:user_id;index;not null" json:"user_id"`
	DocID               uint            `gorm:"column:doc_id;index;not null" json:"doc_id"`
	SlotDate            string          `gorm:"column:slot_date;size:20;not null" json:"slot_date"`
	SlotTime            string          `gorm:"column:slot_time;size:20;not null" json:"slot_time"`
	UserData            PatientSnapshot `gorm:"column:user_data;type:jsonb" json:"user_data"`
	DocData             DoctorSnapshot  `gorm:"column:doc_data;type:jsonb" json:"doc_data"`
	Amount              float64         `gorm:"column:amount;not null" json:"amount"`
	Cancelled           bool            `gorm:"column:cancelled;default:false" json:"cancelled"`
	IsCompleted         bool            `gorm:"column:is_completed;default:false" json:"is_completed"`
	Payment             bool            `gorm:"column:payment;default:false" json:"payment"`
	PaymobOrderID       string          `gorm:"column:paymob_order_id;size:64;index" json:"paymob_order_id,omitempty"`
	PaymobTransactionID string          `gorm:"column:paymob_transaction_id;size:64" json:"paymob_transaction_id,omitempty"`
	PaidAt              *time.Time      `gorm:"column:paid_at" json:"paid_at,omitempty"`
	BookedAt            time.Time       `gorm:"column:booked_at;not null" json:"booked_at"`
}

func (Appointment) TableName() string {
	return "appointments"
}
