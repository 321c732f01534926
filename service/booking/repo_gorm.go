package booking

import (
	"context"
	"errors"

	"github.com/medibook-app/MediBook-server/cmd/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRepository backs the booking engine with the shared gorm connection.
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Transaction(ctx context.Context, fn func(Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepository{db: tx})
	})
}

func (r *GormRepository) DoctorByID(ctx context.Context, id uint) (*models.Doctor, error) {
	var doctor models.Doctor
	if err := r.db.WithContext(ctx).First(&doctor, id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &doctor, nil
}

func (r *GormRepository) DoctorForUpdate(ctx context.Context, id uint) (*models.Doctor, error) {
	var doctor models.Doctor
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&doctor, id).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &doctor, nil
}

func (r *GormRepository) SaveDoctorSlots(ctx context.Context, doctor *models.Doctor) error {
	return r.db.WithContext(ctx).Model(doctor).
		Update("slots_booked", doctor.SlotsBooked).Error
}

func (r *GormRepository) UserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &user, nil
}

func (r *GormRepository) CreateAppointment(ctx context.Context, appt *models.Appointment) error {
	return r.db.WithContext(ctx).Create(appt).Error
}

func (r *GormRepository) AppointmentByID(ctx context.Context, id uint) (*models.Appointment, error) {
	var appt models.Appointment
	if err := r.db.WithContext(ctx).First(&appt, id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &appt, nil
}

func (r *GormRepository) AppointmentByOrderID(ctx context.Context, orderID string) (*models.Appointment, error) {
	var appt models.Appointment
	err := r.db.WithContext(ctx).
		Where("paymob_order_id = ?", orderID).
		First(&appt).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &appt, nil
}

func (r *GormRepository) SaveAppointment(ctx context.Context, appt *models.Appointment) error {
	return r.db.WithContext(ctx).Save(appt).Error
}

func (r *GormRepository) DeleteAppointment(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Unscoped().Delete(&models.Appointment{}, id).Error
}

func (r *GormRepository) AppointmentsByUser(ctx context.Context, userID uint) ([]models.Appointment, error) {
	var appts []models.Appointment
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("booked_at DESC").
		Find(&appts).Error
	return appts, err
}

func (r *GormRepository) AppointmentsByDoctor(ctx context.Context, docID uint) ([]models.Appointment, error) {
	var appts []models.Appointment
	err := r.db.WithContext(ctx).
		Where("doc_id = ?", docID).
		Order("booked_at DESC").
		Find(&appts).Error
	return appts, err
}

func (r *GormRepository) CreatePaymentAttempt(ctx context.Context, attempt *models.PaymentAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
