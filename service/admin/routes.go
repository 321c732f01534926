package admin

import (
	"crypto/hmac"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/medibook-app/MediBook-server/cmd/models"
	"github.com/medibook-app/MediBook-server/cmd/utils"
	"github.com/medibook-app/MediBook-server/service/booking"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AdminHandler struct {
	db  *gorm.DB
	svc *booking.Service
}

func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{
		db:  db,
		svc: booking.NewService(booking.NewGormRepository(db)),
	}
}

func (h *AdminHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/admin/login", h.HandleLogin).Methods("POST")

	adminRouter := router.PathPrefix("/admin").Subrouter()
	adminRouter.HandleFunc("/doctors", utils.RequireRole(utils.RoleAdmin, h.AddDoctor)).Methods("POST")
	adminRouter.HandleFunc("/doctors", utils.RequireRole(utils.RoleAdmin, h.ListDoctors)).Methods("GET")
	adminRouter.HandleFunc("/doctors/{id}/availability", utils.RequireRole(utils.RoleAdmin, h.ToggleAvailability)).Methods("PATCH")
	adminRouter.HandleFunc("/appointments", utils.RequireRole(utils.RoleAdmin, h.GetAllAppointments)).Methods("GET")
	adminRouter.HandleFunc("/appointments/{id}/cancel", utils.RequireRole(utils.RoleAdmin, h.CancelAppointment)).Methods("PATCH")
	adminRouter.HandleFunc("/appointments/{id}/paid", utils.RequireRole(utils.RoleAdmin, h.MarkAppointmentPaid)).Methods("PATCH")
	adminRouter.HandleFunc("/appointments/{id}", utils.RequireRole(utils.RoleAdmin, h.DeleteAppointment)).Methods("DELETE")
	adminRouter.HandleFunc("/payments", utils.RequireRole(utils.RoleAdmin, h.GetPaymentAttempts)).Methods("GET")
	adminRouter.HandleFunc("/dashboard", utils.RequireRole(utils.RoleAdmin, h.GetDashboardStats)).Methods("GET")
}

// HandleLogin checks the configured admin credentials and issues an admin
// token with subject zero.
func (h *AdminHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var loginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&loginRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminEmail == "" || adminPassword == "" {
		http.Error(w, "Admin login is not configured", http.StatusServiceUnavailable)
		return
	}

	emailOK := hmac.Equal([]byte(loginRequest.Email), []byte(adminEmail))
	passwordOK := hmac.Equal([]byte(loginRequest.Password), []byte(adminPassword))
	if !emailOK || !passwordOK {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := utils.GenerateToken(0, utils.RoleAdmin, 24*time.Hour)
	if err != nil {
		http.Error(w, "Error generating token", http.StatusInternalServerError)
		return
	}

	booking.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "Login successful",
		"access_token": token,
	})
}

// AddDoctor creates a doctor account from multipart form data, storing the
// profile photo alongside the fields.
func (h *AdminHandler) AddDoctor(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(utils.MaxImageSize); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	name := r.FormValue("name")
	email := r.FormValue("email")
	password := r.FormValue("password")
	speciality := r.FormValue("speciality")
	if name == "" || email == "" || password == "" || speciality == "" {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}
	if len(password) < 8 {
		http.Error(w, "Password must be at least 8 characters", http.StatusBadRequest)
		return
	}

	fees, err := strconv.ParseFloat(r.FormValue("fees"), 64)
	if err != nil || fees < 0 {
		http.Error(w, "Invalid fees", http.StatusBadRequest)
		return
	}

	var existing models.Doctor
	if result := h.db.Where("email = ?", email).First(&existing); result.Error == nil {
		http.Error(w, "Email is already in use", http.StatusConflict)
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "Error hashing password", http.StatusInternalServerError)
		return
	}

	doctor := models.Doctor{
		Name:         name,
		Email:        email,
		PasswordHash: string(passwordHash),
		Speciality:   speciality,
		Degree:       r.FormValue("degree"),
		Experience:   r.FormValue("experience"),
		About:        r.FormValue("about"),
		Fees:         fees,
		Address: models.Address{
			Line1: r.FormValue("address_line1"),
			Line2: r.FormValue("address_line2"),
		},
		Available:   true,
		SlotsBooked: models.SlotMap{},
	}

	if qualifications := r.Form["qualifications"]; len(qualifications) > 0 {
		doctor.Qualifications = qualifications
	}

	if file, header, err := r.FormFile("image"); err == nil {
		defer file.Close()
		imageURL, err := utils.SaveImage(file, header)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		doctor.Image = imageURL
	}

	if err := h.db.Create(&doctor).Error; err != nil {
		http.Error(w, "Error creating doctor", http.StatusInternalServerError)
		return
	}

	booking.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"message":   "Doctor created",
		"doctor_id": doctor.ID,
	})
}

func (h *AdminHandler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	var doctors []models.Doctor
	if err := h.db.Order("name").Find(&doctors).Error; err != nil {
		http.Error(w, "Error retrieving doctors", http.StatusInternalServerError)
		return
	}
	booking.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"doctors": doctors,
		"total":   len(doctors),
	})
}

func (h *AdminHandler) ToggleAvailability(w http.ResponseWriter, r *http.Request) {
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

func (h *AdminHandler) GetAllAppointments(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 100

	query := h.db.Model(&models.Appointment{})

	if status := r.URL.Query().Get("status"); status != "" {
		switch status {
		case "cancelled":
			query = query.Where("cancelled = ?", true)
		case "completed":
			query = query.Where("is_completed = ?", true)
		case "paid":
			query = query.Where("payment = ?", true)
		case "upcoming":
			query = query.Where("cancelled = ? AND is_completed = ?", false, false)
		}
	}
	if date := r.URL.Query().Get("date"); date != "" {
		query = query.Where("slot_date = ?", date)
	}

	var total int64
	query.Count(&total)

	var appointments []models.Appointment
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
		Order("booked_at DESC").Find(&appointments).Error; err != nil {
		http.Error(w, "Error retrieving appointments", http.StatusInternalServerError)
		return
	}

	booking.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"appointments": appointments,
		"total":        total,
		"page":         page,
		"page_size":    pageSize,
		"total_pages":  (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

func (h *AdminHandler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	appt, err := h.svc.Cancel(r.Context(), booking.Identity{Role: utils.RoleAdmin}, id)
	if err != nil {
		booking.WriteError(w, err)
		return
	}
	booking.WriteJSON(w, http.StatusOK, appt)
}

// MarkAppointmentPaid settles an appointment that was paid outside the
// gateway. Re-applying to an already-paid appointment is a no-op.
func (h *AdminHandler) MarkAppointmentPaid(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var request struct {
		TransactionID string `json:"transaction_id"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&request)
	}
	if request.TransactionID == "" {
		request.TransactionID = "manual"
	}

	appt, err := h.svc.MarkPaidByID(r.Context(), id, request.TransactionID)
	if err != nil {
		booking.WriteError(w, err)
		return
	}
	booking.WriteJSON(w, http.StatusOK, appt)
}

func (h *AdminHandler) DeleteAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), booking.Identity{Role: utils.RoleAdmin}, id); err != nil {
		booking.WriteError(w, err)
		return
	}
	booking.WriteJSON(w, http.StatusOK, map[string]string{"message": "Appointment deleted"})
}

// GetPaymentAttempts pages through the gateway callback audit log.
func (h *AdminHandler) GetPaymentAttempts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 100

	query := h.db.Model(&models.PaymentAttempt{})
	if success := r.URL.Query().Get("success"); success != "" {
		query = query.Where("success = ?", success == "true")
	}

	var total int64
	query.Count(&total)

	var attempts []models.PaymentAttempt
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
		Order("created_at DESC").Find(&attempts).Error; err != nil {
		http.Error(w, "Error retrieving payment attempts", http.StatusInternalServerError)
		return
	}

	booking.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"attempts":    attempts,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

type DashboardStats struct {
	TotalDoctors      int64                `json:"total_doctors"`
	TotalPatients     int64                `json:"total_patients"`
	TotalAppointments int64                `json:"total_appointments"`
	CollectedRevenue  float64              `json:"collected_revenue"`
	LatestBookings    []models.Appointment `json:"latest_bookings"`
}

func (h *AdminHandler) GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	var stats DashboardStats

	h.db.Model(&models.Doctor{}).Count(&stats.TotalDoctors)
	h.db.Model(&models.User{}).Count(&stats.TotalPatients)
	h.db.Model(&models.Appointment{}).Count(&stats.TotalAppointments)

	row := h.db.Model(&models.Appointment{}).
		Where("payment = ?", true).
		Select("COALESCE(SUM(amount), 0)").Row()
	if err := row.Scan(&stats.CollectedRevenue); err != nil {
		log.Printf("Dashboard: error summing revenue: %v", err)
	}

	if err := h.db.Order("booked_at DESC").Limit(5).Find(&stats.LatestBookings).Error; err != nil {
		http.Error(w, "Error retrieving latest bookings", http.StatusInternalServerError)
		return
	}

	booking.WriteJSON(w, http.StatusOK, stats)
}

func parseID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid appointment ID", http.StatusBadRequest)
		return 0, false
	}
	return uint(id), true
}
