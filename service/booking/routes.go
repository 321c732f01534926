package booking

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/medibook-app/MediBook-server/cmd/utils"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

// BookingHandler exposes the patient-facing booking and lifecycle endpoints.
type BookingHandler struct {
	svc *Service
}

func NewBookingHandler(db *gorm.DB) *BookingHandler {
	return &BookingHandler{svc: NewService(NewGormRepository(db))}
}

// Engine exposes the shared lifecycle service to sibling handlers.
func (h *BookingHandler) Engine() *Service {
	return h.svc
}

func (h *BookingHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/appointments/book", utils.RequireRole(utils.RoleUser, h.BookAppointment)).Methods("POST")
	router.HandleFunc("/appointments/mine", utils.RequireRole(utils.RoleUser, h.MyAppointments)).Methods("GET")
	router.HandleFunc("/appointments/{id}", utils.AuthMiddleware(h.GetAppointment)).Methods("GET")
	router.HandleFunc("/appointments/{id}/cancel", utils.AuthMiddleware(h.CancelAppointment)).Methods("PATCH")
	router.HandleFunc("/appointments/{id}", utils.AuthMiddleware(h.DeleteAppointment)).Methods("DELETE")
}

// WriteJSON writes a JSON response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// WriteError maps the booking error taxonomy onto HTTP statuses and writes a
// structured JSON error body.
func WriteError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, ErrSlotUnavailable):
		status = http.StatusConflict
	case errors.Is(err, ErrPreconditionFailed):
		status = http.StatusPreconditionFailed
	case errors.Is(err, ErrValidation):
		status = http.StatusBadRequest
	}
	WriteJSON(w, status, map[string]string{"error": err.Error()})
}

// CallerFromRequest builds the engine identity from the authenticated request.
func CallerFromRequest(r *http.Request) (Identity, error) {
	role, err := utils.GetRoleFromContext(r)
	if err != nil {
		return Identity{}, err
	}
	id, err := utils.GetUserIDFromContext(r)
	if err != nil {
		return Identity{}, err
	}
	return Identity{Role: role, ID: id}, nil
}

func (h *BookingHandler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var bookingRequest struct {
		DocID    uint   `json:"doc_id"`
		SlotDate string `json:"slot_date"`
		SlotTime string `json:"slot_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&bookingRequest); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	appt, err := h.svc.Book(r.Context(), userID, bookingRequest.DocID, bookingRequest.SlotDate, bookingRequest.SlotTime)
	if err != nil {
		WriteError(w, err)
		return
	}

	go func() {
		if err := sendBookingConfirmation(appt); err != nil {
			log.Printf("Error sending booking confirmation: %v", err)
		}
	}()

	WriteJSON(w, http.StatusCreated, appt)
}

func (h *BookingHandler) MyAppointments(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	appts, err := h.svc.ForUser(r.Context(), userID)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"appointments": appts,
		"total":        len(appts),
	})
}

func (h *BookingHandler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	id, caller, ok := h.idAndCaller(w, r)
	if !ok {
		return
	}
	appt, err := h.svc.Get(r.Context(), caller, id)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, appt)
}

func (h *BookingHandler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, caller, ok := h.idAndCaller(w, r)
	if !ok {
		return
	}
	appt, err := h.svc.Cancel(r.Context(), caller, id)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, appt)
}

func (h *BookingHandler) DeleteAppointment(w http.ResponseWriter, r *http.Request) {
	id, caller, ok := h.idAndCaller(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), caller, id); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"message": "Appointment deleted"})
}

func (h *BookingHandler) idAndCaller(w http.ResponseWriter, r *http.Request) (uint, Identity, bool) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid appointment ID"})
		return 0, Identity{}, false
	}
	caller, err := CallerFromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return 0, Identity{}, false
	}
	return uint(id), caller, true
}
