package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/medibook-app/MediBook-server/cmd/models"
	"github.com/medibook-app/MediBook-server/cmd/utils"
	"github.com/medibook-app/MediBook-server/service/booking"
	"gorm.io/gorm"
)

// PaymentHandler bridges appointments to the Paymob gateway: it creates
// checkout sessions and applies the gateway's webhook and browser-return
// confirmations through one idempotent path.
type PaymentHandler struct {
	svc        *booking.Service
	repo       booking.Repository
	gateway    *PaymobClient
	successURL string
	failureURL string
}

func NewPaymentHandler(db *gorm.DB) *PaymentHandler {
	repo := booking.NewGormRepository(db)
	if os.Getenv("PAYMOB_HMAC_SECRET") == "" {
		log.Println("WARNING: PAYMOB_HMAC_SECRET is not set; all webhook deliveries will be rejected")
	}
	return &PaymentHandler{
		svc:        booking.NewService(repo),
		repo:       repo,
		gateway:    NewPaymobClientFromEnv(),
		successURL: os.Getenv("PAYMENT_SUCCESS_URL"),
		failureURL: os.Getenv("PAYMENT_FAILURE_URL"),
	}
}

func (h *PaymentHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/payments/appointments/{id}/session", utils.RequireRole(utils.RoleUser, h.CreateSession)).Methods("POST")
	router.HandleFunc("/payments/webhook", h.HandleWebhook).Methods("POST")
	router.HandleFunc("/payments/return", h.HandleReturn).Methods("GET")
}

// CreateSession obtains a gateway auth token, creates an order for the
// appointment amount in minor units and requests a payment key scoped to the
// patient's billing data. The gateway order id is persisted for webhook
// correlation.
func (h *PaymentHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	appointmentID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		booking.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid appointment ID"})
		return
	}
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	appt, err := h.repo.AppointmentByID(r.Context(), uint(appointmentID))
	if err != nil {
		booking.WriteError(w, err)
		return
	}
	if appt.UserID != userID {
		booking.WriteError(w, booking.ErrUnauthorized)
		return
	}
	if appt.Cancelled {
		booking.WriteError(w, fmt.Errorf("%w: cancelled appointment cannot be paid", booking.ErrPreconditionFailed))
		return
	}
	if appt.Payment {
		booking.WriteError(w, fmt.Errorf("%w: appointment already paid", booking.ErrPreconditionFailed))
		return
	}

	authToken, err := h.gateway.Authenticate(r.Context())
	if err != nil {
		writeGatewayError(w, err)
		return
	}

	amountCents := int64(math.Round(appt.Amount * 100))
	merchantRef := fmt.Sprintf("APT-%d-%s", appt.ID, uuid.New().String()[:8])
	description := fmt.Sprintf("Consultation with Dr. %s (%s %s)", appt.DocData.Name, appt.SlotDate, appt.SlotTime)

	orderID, err := h.gateway.CreateOrder(r.Context(), authToken, amountCents, merchantRef, description)
	if err != nil {
		writeGatewayError(w, err)
		return
	}

	// A fresh session overwrites any stale order id from an expired attempt.
	appt.PaymobOrderID = strconv.FormatInt(orderID, 10)
	if err := h.repo.SaveAppointment(r.Context(), appt); err != nil {
		booking.WriteError(w, err)
		return
	}

	firstName, lastName := SplitBillingName(appt.UserData.Name)
	billing := BillingData{
		FirstName: firstName,
		LastName:  lastName,
		Email:     defaultIfEmpty(appt.UserData.Email, "na@example.com"),
		Phone:     defaultIfEmpty(appt.UserData.Phone, "NA"),
	}

	paymentKey, err := h.gateway.PaymentKey(r.Context(), authToken, orderID, amountCents, billing)
	if err != nil {
		writeGatewayError(w, err)
		return
	}

	booking.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"payment_key": paymentKey,
		"order_id":    appt.PaymobOrderID,
		"iframe_url":  h.gateway.IframeURL(paymentKey),
		"amount":      appt.Amount,
	})
}

type webhookPayload struct {
	Type string `json:"type"`
	Obj  struct {
		ID      int64   `json:"id"`
		Success bool    `json:"success"`
		Amount  float64 `json:"amount_cents"`
		Order   struct {
			ID int64 `json:"id"`
		} `json:"order"`
		ErrorOccured bool `json:"error_occured"`
	} `json:"obj"`
}

// HandleWebhook processes the gateway's asynchronous transaction callback.
// Once the signature verifies, the response is always 200: the gateway
// retries on anything else, and retry storms help nobody. Internal failures
// are logged and recorded as payment attempts instead.
func (h *PaymentHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Error reading request body", http.StatusBadRequest)
		return
	}

	// Without a secret no delivery can be authenticated, so none is accepted.
	if h.gateway.HMACSecret == "" {
		log.Printf("Webhook: rejected delivery, PAYMOB_HMAC_SECRET is not configured")
		http.Error(w, "Webhook verification is not configured", http.StatusServiceUnavailable)
		return
	}
	if !h.gateway.VerifySignature(body, r.URL.Query().Get("hmac")) {
		http.Error(w, "Invalid signature", http.StatusBadRequest)
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Printf("Webhook: unparseable payload: %v", err)
		w.WriteHeader(http.StatusOK)
		return
	}
	if payload.Type != "" && payload.Type != "TRANSACTION" {
		w.WriteHeader(http.StatusOK)
		return
	}

	orderID := strconv.FormatInt(payload.Obj.Order.ID, 10)
	transactionID := strconv.FormatInt(payload.Obj.ID, 10)

	if !payload.Obj.Success {
		h.recordAttempt(r, 0, orderID, transactionID, payload.Obj.Amount/100, false, "gateway reported failure", string(body))
		w.WriteHeader(http.StatusOK)
		return
	}

	appt, err := h.svc.ConfirmPaymentByOrder(r.Context(), orderID, transactionID)
	if err != nil {
		log.Printf("Webhook: could not confirm payment for order %s: %v", orderID, err)
		w.WriteHeader(http.StatusOK)
		return
	}

	h.recordAttempt(r, appt.ID, orderID, transactionID, payload.Obj.Amount/100, true, "", string(body))
	w.WriteHeader(http.StatusOK)
}

// HandleReturn is the browser-redirect twin of the webhook. It marks the
// payment opportunistically when the webhook has not landed yet; MarkPaid is
// idempotent, so the two paths cannot double-apply.
func (h *PaymentHandler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	success := query.Get("success") == "true"
	orderID := query.Get("order")
	transactionID := query.Get("id")

	if success && orderID != "" {
		if _, err := h.svc.ConfirmPaymentByOrder(r.Context(), orderID, transactionID); err != nil {
			log.Printf("Payment return: could not confirm order %s: %v", orderID, err)
			success = false
		}
	}

	target := h.failureURL
	if success {
		target = h.successURL
	}
	if target == "" {
		booking.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": success})
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *PaymentHandler) recordAttempt(r *http.Request, apptID uint, orderID, transactionID string, amount float64, success bool, message, payload string) {
	attempt := &models.PaymentAttempt{
		AppointmentID: apptID,
		OrderID:       orderID,
		TransactionID: transactionID,
		Amount:        amount,
		Success:       success,
		Message:       message,
		Payload:       payload,
	}
	if err := h.repo.CreatePaymentAttempt(r.Context(), attempt); err != nil {
		log.Printf("Webhook: failed to record payment attempt for order %s: %v", orderID, err)
	}
}

func writeGatewayError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrGateway) {
		booking.WriteJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	booking.WriteError(w, err)
}

func defaultIfEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
