package booking

import (
	"fmt"
	"os"
	"strconv"

	"github.com/medibook-app/MediBook-server/cmd/models"
	"gopkg.in/gomail.v2"
)

// sendBookingConfirmation mails the patient their slot details. Failures are
// logged by the caller, never surfaced to the booking response.
func sendBookingConfirmation(appt *models.Appointment) error {
	smtpHost := os.Getenv("SMTP_HOST")
	smtpPort := os.Getenv("SMTP_PORT")
	smtpUser := os.Getenv("SMTP_USER")
	smtpPass := os.Getenv("SMTP_PASS")

	if smtpHost == "" {
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", smtpUser)
	m.SetHeader("To", appt.UserData.Email)
	m.SetHeader("Subject", "Appointment Confirmation")
	m.SetBody("text/plain", fmt.Sprintf(
		"Your appointment with Dr. %s (%s) is booked for %s at %s. Consultation fee: %.2f.",
		appt.DocData.Name, appt.DocData.Speciality, appt.SlotDate, appt.SlotTime, appt.Amount,
	))

	port, err := strconv.Atoi(smtpPort)
	if err != nil {
		return fmt.Errorf("invalid SMTP port: %v", err)
	}
	d := gomail.NewDialer(smtpHost, port, smtpUser, smtpPass)

	return d.DialAndSend(m)
}
