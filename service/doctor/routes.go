package doctor

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/medibook-app/MediBook-server/cmd/models"
	"github.com/medibook-app/MediBook-server/cmd/utils"
	"github.com/medibook-app/MediBook-server/service/booking"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type DoctorHandler struct {
	db  *gorm.DB
	svc *booking.Service
}

func NewDoctorHandler(db *gorm.DB) *DoctorHandler {
	return &DoctorHandler{
		db:  db,
		svc: booking.NewService(booking.NewGormRepository(db)),
	}
}

func (h *DoctorHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/doctors", h.ListDoctors).Methods("GET")
	router.HandleFunc("/doctors/login", h.HandleLogin).Methods("POST")
	router.HandleFunc("/doctors/appointments", utils.RequireRole(utils.RoleDoctor, h.MyAppointments)).Methods("GET")
	router.HandleFunc("/doctors/appointments/{id}/complete", utils.RequireRole(utils.RoleDoctor, h.CompleteAppointment)).Methods("PATCH")
	router.HandleFunc("/doctors/appointments/{id}/cancel", utils.RequireRole(utils.RoleDoctor, h.CancelAppointment)).Methods("PATCH")
	router.HandleFunc("/doctors/availability", utils.RequireRole(utils.RoleDoctor, h.ToggleAvailability)).Methods("PATCH")
	router.HandleFunc("/doctors/profile", utils.RequireRole(utils.RoleDoctor, h.UpdateProfile)).Methods("PUT")
	router.HandleFunc("/doctors/{id}", h.GetDoctor).Methods("GET")
	router.HandleFunc("/doctors/{id}/slots", h.GetCandidateSlots).Methods("GET")
}

// publicDoctor is the listing shape exposed to unauthenticated browsing.
type publicDoctor struct {
	ID         uint           `json:"id"`
	Name       string         `json:"name"`
	Image      string         `json:"image"`
	Speciality string         `json:"speciality"`
	Degree     string         `json:"degree"`
	Experience string         `json:"experience"`
	About      string         `json:"about"`
	Fees       float64        `json:"fees"`
	Address    models.Address `json:"address"`
	Available  bool           `json:"available"`
}

func toPublic(d models.Doctor) publicDoctor {
	return publicDoctor{
		ID:         d.ID,
		Name:       d.Name,
		Image:      d.Image,
		Speciality: d.Speciality,
		Degree:     d.Degree,
		Experience: d.Experience,
		About:      d.About,
		Fees:       d.Fees,
		Address:    d.Address,
		Available:  d.Available,
	}
}

func (h *DoctorHandler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	query := h.db.Model(&models.Doctor{})
	if speciality := r.URL.Query().Get("speciality"); speciality != "" {
		query = query.Where("speciality = ?", speciality)
	}

	var doctors []models.Doctor
	if err := query.Order("name").Find(&doctors).Error; err != nil {
		http.Error(w, "Error retrieving doctors", http.StatusInternalServerError)
		return
	}

	listing := make([]publicDoctor, 0, len(doctors))
	for _, d := range doctors {
		listing = append(listing, toPublic(d))
	}

	booking.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"doctors": listing,
		"total":   len(listing),
	})
}

func (h *DoctorHandler) GetDoctor(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	doctorID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid doctor ID", http.StatusBadRequest)
		return
	}

	var doctor models.Doctor
	if err := h.db.First(&doctor, doctorID).Error; err != nil {
		http.Error(w, "Doctor not found", http.StatusNotFound)
		return
	}

	booking.WriteJSON(w, http.StatusOK, toPublic(doctor))
}

// GetCandidateSlots lists every open 30-minute slot for the next 7 days,
// filtered against the doctor's booked map. Display-only; the booking engine
// re-checks under lock.
func (h *DoctorHandler) GetCandidateSlots(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	doctorID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid doctor ID", http.StatusBadRequest)
		return
	}

	var doctor models.Doctor
	if err := h.db.First(&doctor, doctorID).Error; err != nil {
		http.Error(w, "Doctor not found", http.StatusNotFound)
		return
	}

	slots := booking.CandidateSlots(doctor.SlotsBooked, time.Now(), booking.CandidateDays)
	booking.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"doctor_id": doctor.ID,
		"available": doctor.Available,
		"slots":     slots,
	})
}

func (h *DoctorHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var loginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&loginRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var doctor models.Doctor
	if err := h.db.Where("email = ?", loginRequest.Email).First(&doctor).Error; err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(doctor.PasswordHash), []byte(loginRequest.Password)); err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := utils.GenerateToken(doctor.ID, utils.RoleDoctor, 24*time.Hour)
	if err != nil {
		http.Error(w, "Error generating token", http.StatusInternalServerError)
		return
	}

	booking.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "Login successful",
		"access_token": token,
		"doctor_id":    doctor.ID,
	})
}

func (h *DoctorHandler) MyAppointments(w http.ResponseWriter, r *http.Request) {
	docID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	appts, err := h.svc.ForDoctor(r.Context(), docID)
	if err != nil {
		booking.WriteError(w, err)
		return
	}
	booking.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"appointments": appts,
		"total":        len(appts),
	})
}

func (h *DoctorHandler) CompleteAppointment(w http.ResponseWriter, r *http.Request) {
	id, caller, ok := h.idAndCaller(w, r)
	if !ok {
		return
	}
	appt, err := h.svc.Complete(r.Context(), caller, id)
	if err != nil {
		booking.WriteError(w, err)
		return
	}
	booking.WriteJSON(w, http.StatusOK, appt)
}

func (h *DoctorHandler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, caller, ok := h.idAndCaller(w, r)
	if !ok {
		return
	}
	appt, err := h.svc.Cancel(r.Context(), caller, id)
	if err != nil {
		booking.WriteError(w, err)
		return
	}
	booking.WriteJSON(w, http.StatusOK, appt)
}

func (h *DoctorHandler) ToggleAvailability(w http.ResponseWriter, r *http.Request) {
	docID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var doctor models.Doctor
	if err := h.db.First(&doctor, docID).Error; err != nil {
		http.Error(w, "Doctor not found", http.StatusNotFound)
		return
	}

	doctor.Available = !doctor.Available
	if err := h.db.Model(&doctor).Update("available", doctor.Available).Error; err != nil {
		http.Error(w, "Error updating availability", http.StatusInternalServerError)
		return
	}

	booking.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"doctor_id": doctor.ID,
		"available": doctor.Available,
	})
}

func (h *DoctorHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	docID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var updateRequest struct {
		Fees         *float64 `json:"fees"`
		About        *string  `json:"about"`
		AddressLine1 *string  `json:"address_line1"`
		AddressLine2 *string  `json:"address_line2"`
		Available    *bool    `json:"available"`
	}
	if err := json.NewDecoder(r.Body).Decode(&updateRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var doctor models.Doctor
	if err := h.db.First(&doctor, docID).Error; err != nil {
		http.Error(w, "Doctor not found", http.StatusNotFound)
		return
	}

	if updateRequest.Fees != nil {
		doctor.Fees = *updateRequest.Fees
	}
	if updateRequest.About != nil {
		doctor.About = *updateRequest.About
	}
	if updateRequest.AddressLine1 != nil {
		doctor.Address.Line1 = *updateRequest.AddressLine1
	}
	if updateRequest.AddressLine2 != nil {
		doctor.Address.Line2 = *updateRequest.AddressLine2
	}
	if updateRequest.Available != nil {
		doctor.Available = *updateRequest.Available
	}

	if err := h.db.Save(&doctor).Error; err != nil {
		http.Error(w, "Error updating profile", http.StatusInternalServerError)
		return
	}

	booking.WriteJSON(w, http.StatusOK, toPublic(doctor))
}

func (h *DoctorHandler) idAndCaller(w http.ResponseWriter, r *http.Request) (uint, booking.Identity, bool) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid appointment ID", http.StatusBadRequest)
		return 0, booking.Identity{}, false
	}
	caller, err := booking.CallerFromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return 0, booking.Identity{}, false
	}
	return uint(id), caller, true
}
