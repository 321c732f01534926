package booking

import (
	"context"

	"github.com/medibook-app/MediBook-server/cmd/models"
)

// Repository is the storage surface the booking and lifecycle engines run
// against. Implementations report missing rows as ErrNotFound.
type Repository interface {
	// Transaction runs fn against a transactional view of the repository.
	// Every write fn performs is committed or rolled back as one unit.
	Transaction(ctx context.Context, fn func(Repository) error) error

	DoctorByID(ctx context.Context, id uint) (*models.Doctor, error)
	// DoctorForUpdate loads the doctor row locked for the duration of the
	// surrounding transaction, serializing concurrent slot mutations.
	DoctorForUpdate(ctx context.Context, id uint) (*models.Doctor, error)
	SaveDoctorSlots(ctx context.Context, doctor *models.Doctor) error

	UserByID(ctx context.Context, id uint) (*models.User, error)

	CreateAppointment(ctx context.Context, appt *models.Appointment) error
	AppointmentByID(ctx context.Context, id uint) (*models.Appointment, error)
	AppointmentByOrderID(ctx context.Context, orderID string) (*models.Appointment, error)
	SaveAppointment(ctx context.Context, appt *models.Appointment) error
	DeleteAppointment(ctx context.Context, id uint) error
	AppointmentsByUser(ctx context.Context, userID uint) ([]models.Appointment, error)
	AppointmentsByDoctor(ctx context.Context, docID uint) ([]models.Appointment, error)

	CreatePaymentAttempt(ctx context.Context, attempt *models.PaymentAttempt) error
}
