package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// SlotMap maps a date key ("5_3_2025") to the times already booked on that
// day. Within one key a time appears at most once.
type SlotMap map[string][]string

func (m SlotMap) Value() (driver.Value, error) {
	if m == nil {
		m = SlotMap{}
	}
	return json.Marshal(m)
}

func (m *SlotMap) Scan(value interface{}) error {
	if value == nil {
		*m = SlotMap{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return errors.New("unsupported source type for SlotMap")
	}
}

// Has reports whether slotTime is already booked under dateKey.
func (m SlotMap) Has(dateKey, slotTime string) bool {
	for _, t := range m[dateKey] {
		if t == slotTime {
			return true
		}
	}
	return false
}

// Book appends slotTime under dateKey. It returns false without mutating
// anything when the time is already taken.
func (m SlotMap) Book(dateKey, slotTime string) bool {
	if m.Has(dateKey, slotTime) {
		return false
	}
	m[dateKey] = append(m[dateKey], slotTime)
	return true
}

// Release removes slotTime from dateKey, dropping the key entirely when its
// list becomes empty.
func (m SlotMap) Release(dateKey, slotTime string) {
	times := m[dateKey]
	for i, t := range times {
		if t == slotTime {
			times = append(times[:i], times[i+1:]...)
			break
		}
	}
	if len(times) == 0 {
		delete(m, dateKey)
		return
	}
	m[dateKey] = times
}

// Address is stored as a jsonb column on doctors, users and snapshots.
type Address struct {
	Line1 string `json:"line1"`
	Line2 string `json:"line2,omitempty"`
}

func (a Address) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *Address) Scan(value interface{}) error {
	if value == nil {
		*a = Address{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return errors.New("unsupported source type for Address")
	}
}

type Doctor struct {
	gorm.Model
	Name           string         `gorm:"column:name;size:255;not null" json:"name"`
	Email          string         `gorm:"column:email;size:255;uniqueIndex;not null" json:"email"`
	PasswordHash   string         `gorm:"column:password_hash;size:255;not null" json:"-"`
	Image          string         `gorm:"column:image;size:255" json:"image"`
	Speciality     string         `gorm:"column:speciality;size:100;not null" json:"speciality"`
	Degree         string         `gorm:"column:degree;size:100" json:"degree"`
	Qualifications pq.StringArray `gorm:"column:qualifications;type:text[]" json:"qualifications,omitempty"`
	Experience     string         `gorm:"column:experience;size:50" json:"experience"`
	About          string         `gorm:"column:about;type:text" json:"about"`
	Fees           float64        `gorm:"column:fees;not null" json:"fees"`
	Address        Address        `gorm:"column:address;type:jsonb" json:"address"`
	Available      bool           `gorm:"column:available;default:true" json:"available"`
	SlotsBooked    SlotMap        `gorm:"column:slots_booked;type:jsonb" json:"slots_booked"`
}

func (Doctor) TableName() string {
	return "doctors"
}
