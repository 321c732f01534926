package message

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/medibook-app/MediBook-server/cmd/models"
	"github.com/medibook-app/MediBook-server/cmd/utils"
	"github.com/medibook-app/MediBook-server/service/booking"
	"gorm.io/gorm"
)

// MessageHandler serves the public contact form and the admin inbox.
type MessageHandler struct {
	db *gorm.DB
}

func NewMessageHandler(db *gorm.DB) *MessageHandler {
	return &MessageHandler{db: db}
}

func (h *MessageHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/contact", h.CreateMessage).Methods("POST")
	router.HandleFunc("/admin/messages", utils.RequireRole(utils.RoleAdmin, h.ListMessages)).Methods("GET")
	router.HandleFunc("/admin/messages/{id}/read", utils.RequireRole(utils.RoleAdmin, h.MarkRead)).Methods("PATCH")
	router.HandleFunc("/admin/messages/{id}", utils.RequireRole(utils.RoleAdmin, h.DeleteMessage)).Methods("DELETE")
}

func (h *MessageHandler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if request.Name == "" || request.Email == "" || request.Body == "" {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	msg := models.ContactMessage{
		Name:    request.Name,
		Email:   request.Email,
		Subject: request.Subject,
		Body:    request.Body,
	}
	if err := h.db.Create(&msg).Error; err != nil {
		http.Error(w, "Error saving message", http.StatusInternalServerError)
		return
	}

	booking.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Message received",
		"id":      msg.ID,
	})
}

func (h *MessageHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 50

	query := h.db.Model(&models.ContactMessage{})
	if unread := r.URL.Query().Get("unread"); unread == "true" {
		query = query.Where("is_read = ?", false)
	}

	var total int64
	query.Count(&total)

	var messages []models.ContactMessage
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
		Order("created_at DESC").Find(&messages).Error; err != nil {
		http.Error(w, "Error retrieving messages", http.StatusInternalServerError)
		return
	}

	booking.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"messages":    messages,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid message ID", http.StatusBadRequest)
		return
	}

	result := h.db.Model(&models.ContactMessage{}).Where("id = ?", id).Update("is_read", true)
	if result.Error != nil {
		http.Error(w, "Error updating message", http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		http.Error(w, "Message not found", http.StatusNotFound)
		return
	}

	booking.WriteJSON(w, http.StatusOK, map[string]string{"message": "Marked as read"})
}

func (h *MessageHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid message ID", http.StatusBadRequest)
		return
	}

	result := h.db.Unscoped().Delete(&models.ContactMessage{}, id)
	if result.Error != nil {
		http.Error(w, "Error deleting message", http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		http.Error(w, "Message not found", http.StatusNotFound)
		return
	}

	booking.WriteJSON(w, http.StatusOK, map[string]string{"message": "Message deleted"})
}
