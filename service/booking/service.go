package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/medibook-app/MediBook-server/cmd/models"
	"github.com/medibook-app/MediBook-server/cmd/utils"
)

// Identity is the caller resolved by the auth middleware. ID is the user id
// for role user, the doctor id for role doctor and zero for admin.
type Identity struct {
	Role string
	ID   uint
}

// Service implements slot booking and the appointment lifecycle. All slot
// mutations run inside a repository transaction with the doctor row locked,
// so the uniqueness of (doctor, date, time) among active appointments holds
// under concurrent requests as well as sequential ones.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Book reserves (docID, slotDate, slotTime) for the given patient and creates
// the appointment with doctor and patient data snapshotted as of now.
func (s *Service) Book(ctx context.Context, userID, docID uint, slotDate, slotTime string) (*models.Appointment, error) {
	if _, err := ParseDateKey(slotDate); err != nil {
		return nil, err
	}
	if err := ValidateSlotTime(slotTime); err != nil {
		return nil, err
	}

	var appt *models.Appointment
	err := s.repo.Transaction(ctx, func(tx Repository) error {
		doctor, err := tx.DoctorForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if !doctor.Available {
			return fmt.Errorf("%w: doctor is not accepting bookings", ErrPreconditionFailed)
		}

		if doctor.SlotsBooked == nil {
			doctor.SlotsBooked = models.SlotMap{}
		}
		if !doctor.SlotsBooked.Book(slotDate, slotTime) {
			return ErrSlotUnavailable
		}

		user, err := tx.UserByID(ctx, userID)
		if err != nil {
			return err
		}

		appt = &models.Appointment{
			UserID:   userID,
			DocID:    docID,
			SlotDate: slotDate,
			SlotTime: slotTime,
			UserData: models.NewPatientSnapshot(user),
			DocData:  models.NewDoctorSnapshot(doctor),
			Amount:   doctor.Fees,
			BookedAt: time.Now(),
		}
		if err := tx.CreateAppointment(ctx, appt); err != nil {
			return err
		}
		return tx.SaveDoctorSlots(ctx, doctor)
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// Cancel marks the appointment cancelled and releases its slot back into the
// doctor's map. This is the only place slots are released.
func (s *Service) Cancel(ctx context.Context, caller Identity, id uint) (*models.Appointment, error) {
	var appt *models.Appointment
	err := s.repo.Transaction(ctx, func(tx Repository) error {
		var err error
		appt, err = tx.AppointmentByID(ctx, id)
		if err != nil {
			return err
		}
		if err := authorize(caller, appt); err != nil {
			return err
		}
		if appt.Cancelled {
			return fmt.Errorf("%w: appointment already cancelled", ErrPreconditionFailed)
		}
		if appt.IsCompleted {
			return fmt.Errorf("%w: appointment already completed", ErrPreconditionFailed)
		}

		appt.Cancelled = true
		if err := tx.SaveAppointment(ctx, appt); err != nil {
			return err
		}

		doctor, err := tx.DoctorForUpdate(ctx, appt.DocID)
		if err != nil {
			return err
		}
		if doctor.SlotsBooked.Has(appt.SlotDate, appt.SlotTime) {
			doctor.SlotsBooked.Release(appt.SlotDate, appt.SlotTime)
			return tx.SaveDoctorSlots(ctx, doctor)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// Complete marks the appointment completed. Patients cannot complete their
// own appointments.
func (s *Service) Complete(ctx context.Context, caller Identity, id uint) (*models.Appointment, error) {
	if caller.Role == utils.RoleUser {
		return nil, ErrUnauthorized
	}
	appt, err := s.repo.AppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(caller, appt); err != nil {
		return nil, err
	}
	if appt.Cancelled {
		return nil, fmt.Errorf("%w: cancelled appointment cannot be completed", ErrPreconditionFailed)
	}
	appt.IsCompleted = true
	if err := s.repo.SaveAppointment(ctx, appt); err != nil {
		return nil, err
	}
	return appt, nil
}

// MarkPaid flips the payment flag once. Re-applying a confirmation is a
// no-op, which makes the webhook and the browser-return path safe to race.
func (s *Service) MarkPaid(ctx context.Context, appt *models.Appointment, transactionID string) error {
	if appt.Cancelled {
		return fmt.Errorf("%w: cancelled appointment cannot be paid", ErrPreconditionFailed)
	}
	if appt.Payment {
		return nil
	}
	now := time.Now()
	appt.Payment = true
	appt.PaymobTransactionID = transactionID
	appt.PaidAt = &now
	return s.repo.SaveAppointment(ctx, appt)
}

// MarkPaidByID marks an appointment paid by its own id. This is the manual
// override path for payments settled outside the gateway (cash at the desk,
// bank transfer); gateway callbacks resolve by order id instead.
func (s *Service) MarkPaidByID(ctx context.Context, id uint, transactionID string) (*models.Appointment, error) {
	appt, err := s.repo.AppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.MarkPaid(ctx, appt, transactionID); err != nil {
		return nil, err
	}
	return appt, nil
}

// ConfirmPaymentByOrder resolves the gateway order id and marks the
// appointment paid. Used by both the webhook and the return redirect.
func (s *Service) ConfirmPaymentByOrder(ctx context.Context, orderID, transactionID string) (*models.Appointment, error) {
	appt, err := s.repo.AppointmentByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.MarkPaid(ctx, appt, transactionID); err != nil {
		return nil, err
	}
	return appt, nil
}

// Delete removes a cancelled appointment permanently.
func (s *Service) Delete(ctx context.Context, caller Identity, id uint) error {
	appt, err := s.repo.AppointmentByID(ctx, id)
	if err != nil {
		return err
	}
	if err := authorize(caller, appt); err != nil {
		return err
	}
	if !appt.Cancelled {
		return fmt.Errorf("%w: only cancelled appointments can be deleted", ErrPreconditionFailed)
	}
	return s.repo.DeleteAppointment(ctx, id)
}

// ForUser lists a patient's appointments, newest first.
func (s *Service) ForUser(ctx context.Context, userID uint) ([]models.Appointment, error) {
	return s.repo.AppointmentsByUser(ctx, userID)
}

// ForDoctor lists a doctor's appointments, newest first.
func (s *Service) ForDoctor(ctx context.Context, docID uint) ([]models.Appointment, error) {
	return s.repo.AppointmentsByDoctor(ctx, docID)
}

// Get loads one appointment, enforcing ownership.
func (s *Service) Get(ctx context.Context, caller Identity, id uint) (*models.Appointment, error) {
	appt, err := s.repo.AppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(caller, appt); err != nil {
		return nil, err
	}
	return appt, nil
}

func authorize(caller Identity, appt *models.Appointment) error {
	switch caller.Role {
	case utils.RoleAdmin:
		return nil
	case utils.RoleDoctor:
		if appt.DocID == caller.ID {
			return nil
		}
	case utils.RoleUser:
		if appt.UserID == caller.ID {
			return nil
		}
	}
	return ErrUnauthorized
}
