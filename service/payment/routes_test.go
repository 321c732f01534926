package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/medibook-app/MediBook-server/cmd/models"
	"github.com/medibook-app/MediBook-server/cmd/utils"
	"github.com/medibook-app/MediBook-server/service/booking"
)

// -- Mock repository --

type mockRepo struct {
	doctors  map[uint]*models.Doctor
	users    map[uint]*models.User
	appts    map[uint]*models.Appointment
	attempts []*models.PaymentAttempt
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		doctors: make(map[uint]*models.Doctor),
		users:   make(map[uint]*models.User),
		appts:   make(map[uint]*models.Appointment),
	}
}

func (m *mockRepo) Transaction(_ context.Context, fn func(booking.Repository) error) error {
	return fn(m)
}

func (m *mockRepo) DoctorByID(_ context.Context, id uint) (*models.Doctor, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, booking.ErrNotFound
	}
	return d, nil
}

func (m *mockRepo) DoctorForUpdate(ctx context.Context, id uint) (*models.Doctor, error) {
	return m.DoctorByID(ctx, id)
}

func (m *mockRepo) SaveDoctorSlots(_ context.Context, doctor *models.Doctor) error {
	m.doctors[doctor.ID] = doctor
	return nil
}

func (m *mockRepo) UserByID(_ context.Context, id uint) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, booking.ErrNotFound
	}
	return u, nil
}

func (m *mockRepo) CreateAppointment(_ context.Context, appt *models.Appointment) error {
	appt.ID = uint(len(m.appts) + 1)
	m.appts[appt.ID] = appt
	return nil
}

func (m *mockRepo) AppointmentByID(_ context.Context, id uint) (*models.Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, booking.ErrNotFound
	}
	return a, nil
}

func (m *mockRepo) AppointmentByOrderID(_ context.Context, orderID string) (*models.Appointment, error) {
	for _, a := range m.appts {
		if a.PaymobOrderID == orderID {
			return a, nil
		}
	}
	return nil, booking.ErrNotFound
}

func (m *mockRepo) SaveAppointment(_ context.Context, appt *models.Appointment) error {
	m.appts[appt.ID] = appt
	return nil
}

func (m *mockRepo) DeleteAppointment(_ context.Context, id uint) error {
	delete(m.appts, id)
	return nil
}

func (m *mockRepo) AppointmentsByUser(_ context.Context, userID uint) ([]models.Appointment, error) {
	return nil, nil
}

func (m *mockRepo) AppointmentsByDoctor(_ context.Context, docID uint) ([]models.Appointment, error) {
	return nil, nil
}

func (m *mockRepo) CreatePaymentAttempt(_ context.Context, attempt *models.PaymentAttempt) error {
	m.attempts = append(m.attempts, attempt)
	return nil
}

// -- Fixtures --

func newTestHandler(gateway *PaymobClient) (*PaymentHandler, *mockRepo) {
	repo := newMockRepo()
	repo.appts[1] = &models.Appointment{
		UserID:        10,
		DocID:         1,
		SlotDate:      "5_3_2025",
		SlotTime:      "10:00 AM",
		Amount:        150,
		PaymobOrderID: "4711",
		UserData: models.PatientSnapshot{
			Name:  "Kofi Owusu",
			Email: "kowusu@example.test",
			Phone: "+233200000000",
		},
		DocData: models.DoctorSnapshot{Name: "Amina Mensah"},
	}
	repo.appts[1].ID = 1
	if gateway == nil {
		gateway = &PaymobClient{HMACSecret: "secret"}
	}
	h := &PaymentHandler{
		svc:     booking.NewService(repo),
		repo:    repo,
		gateway: gateway,
	}
	return h, repo
}

func webhookBody(t *testing.T, transactionID, orderID int64, success bool) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"type": "TRANSACTION",
		"obj": map[string]interface{}{
			"id":           transactionID,
			"success":      success,
			"amount_cents": 15000,
			"order":        map[string]int64{"id": orderID},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return body
}

func postWebhook(h *PaymentHandler, body []byte, hmac string) *httptest.ResponseRecorder {
	url := "/api/v1/payments/webhook"
	if hmac != "" {
		url += "?hmac=" + hmac
	}
	req := httptest.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)
	return rec
}

// -- Webhook --

func TestWebhookConfirmsPayment(t *testing.T) {
	h, repo := newTestHandler(nil)

	body := webhookBody(t, 900001, 4711, true)
	rec := postWebhook(h, body, h.gateway.Signature(body))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	appt := repo.appts[1]
	if !appt.Payment || appt.PaymobTransactionID != "900001" || appt.PaidAt == nil {
		t.Errorf("payment not applied: %+v", appt)
	}
	if len(repo.attempts) != 1 || !repo.attempts[0].Success {
		t.Fatalf("expected one successful attempt, got %+v", repo.attempts)
	}
	if repo.attempts[0].Amount != 150 {
		t.Errorf("attempt amount should be in major units, got %v", repo.attempts[0].Amount)
	}
}

func TestWebhookIsIdempotent(t *testing.T) {
	h, repo := newTestHandler(nil)

	body := webhookBody(t, 900001, 4711, true)
	postWebhook(h, body, h.gateway.Signature(body))
	paidAt := *repo.appts[1].PaidAt

	replay := webhookBody(t, 900002, 4711, true)
	rec := postWebhook(h, replay, h.gateway.Signature(replay))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on replay, got %d", rec.Code)
	}
	appt := repo.appts[1]
	if !appt.PaidAt.Equal(paidAt) {
		t.Error("replay must not move paid_at")
	}
	if appt.PaymobTransactionID != "900001" {
		t.Error("replay must not overwrite the transaction id")
	}
	if len(repo.attempts) != 2 {
		t.Errorf("both deliveries should be recorded, got %d", len(repo.attempts))
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	h, repo := newTestHandler(nil)

	body := webhookBody(t, 900001, 4711, true)
	rec := postWebhook(h, body, "deadbeef")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if repo.appts[1].Payment {
		t.Error("forged webhook must not confirm the payment")
	}
}

func TestWebhookRequiresConfiguredSecret(t *testing.T) {
	h, repo := newTestHandler(&PaymobClient{})

	body := webhookBody(t, 900001, 4711, true)
	rec := postWebhook(h, body, "")

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a configured secret, got %d", rec.Code)
	}
	if repo.appts[1].Payment {
		t.Error("unverifiable webhook must not confirm the payment")
	}
}

func TestWebhookFailedTransaction(t *testing.T) {
	h, repo := newTestHandler(nil)

	body := webhookBody(t, 900001, 4711, false)
	rec := postWebhook(h, body, h.gateway.Signature(body))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if repo.appts[1].Payment {
		t.Error("failed transaction must not confirm the payment")
	}
	if len(repo.attempts) != 1 || repo.attempts[0].Success {
		t.Fatalf("expected one failed attempt, got %+v", repo.attempts)
	}
}

func TestWebhookUnknownOrder(t *testing.T) {
	h, repo := newTestHandler(nil)

	body := webhookBody(t, 900001, 9999, true)
	rec := postWebhook(h, body, h.gateway.Signature(body))

	// The gateway still gets a 200; retrying an unknown order cannot help.
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if repo.appts[1].Payment {
		t.Error("unknown order must not confirm anything")
	}
}

// -- Browser return --

func TestReturnConfirmsPayment(t *testing.T) {
	h, repo := newTestHandler(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/return?success=true&order=4711&id=900001", nil)
	rec := httptest.NewRecorder()
	h.HandleReturn(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp["success"] {
		t.Error("expected success true in response")
	}
	if !repo.appts[1].Payment {
		t.Error("return path should confirm the payment")
	}
}

func TestReturnFailure(t *testing.T) {
	h, repo := newTestHandler(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/return?success=false&order=4711", nil)
	rec := httptest.NewRecorder()
	h.HandleReturn(rec, req)

	var resp map[string]bool
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["success"] {
		t.Error("expected success false in response")
	}
	if repo.appts[1].Payment {
		t.Error("failed return must not confirm the payment")
	}
}

func TestReturnRedirects(t *testing.T) {
	h, _ := newTestHandler(nil)
	h.successURL = "https://app.example.test/paid"

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/return?success=true&order=4711&id=900001", nil)
	rec := httptest.NewRecorder()
	h.HandleReturn(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "https://app.example.test/paid" {
		t.Errorf("unexpected redirect target: %s", got)
	}
}

// -- Session creation --

func sessionRequest(apptID string, userID uint) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/appointments/"+apptID+"/session", nil)
	req = mux.SetURLVars(req, map[string]string{"id": apptID})
	ctx := context.WithValue(req.Context(), utils.UserIDKey, userID)
	ctx = context.WithValue(ctx, utils.RoleKey, utils.RoleUser)
	return req.WithContext(ctx)
}

func TestCreateSession(t *testing.T) {
	gatewayServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/tokens":
			json.NewEncoder(w).Encode(map[string]string{"token": "auth-token"})
		case "/ecommerce/orders":
			json.NewEncoder(w).Encode(map[string]int64{"id": 80001})
		case "/acceptance/payment_keys":
			json.NewEncoder(w).Encode(map[string]string{"token": "payment-key"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer gatewayServer.Close()

	h, repo := newTestHandler(&PaymobClient{
		BaseURL:       gatewayServer.URL,
		APIKey:        "test-api-key",
		IntegrationID: "12345",
		IframeID:      "67890",
		HTTPClient:    &http.Client{Timeout: time.Second},
	})
	repo.appts[1].PaymobOrderID = ""

	rec := httptest.NewRecorder()
	h.CreateSession(rec, sessionRequest("1", 10))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp["payment_key"] != "payment-key" {
		t.Errorf("expected payment key in response, got %v", resp["payment_key"])
	}
	if resp["order_id"] != "80001" {
		t.Errorf("expected order id 80001, got %v", resp["order_id"])
	}
	if fmt.Sprint(resp["iframe_url"]) == "" {
		t.Error("expected an iframe url")
	}
	if repo.appts[1].PaymobOrderID != "80001" {
		t.Errorf("order id not persisted, got %q", repo.appts[1].PaymobOrderID)
	}
}

func TestCreateSessionOwnershipEnforced(t *testing.T) {
	h, _ := newTestHandler(nil)

	rec := httptest.NewRecorder()
	h.CreateSession(rec, sessionRequest("1", 11))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestCreateSessionAlreadyPaid(t *testing.T) {
	h, repo := newTestHandler(nil)
	now := time.Now()
	repo.appts[1].Payment = true
	repo.appts[1].PaidAt = &now

	rec := httptest.NewRecorder()
	h.CreateSession(rec, sessionRequest("1", 10))

	if rec.Code != http.StatusPreconditionFailed {
		t.Fatalf("expected 412, got %d", rec.Code)
	}
}

func TestCreateSessionCancelled(t *testing.T) {
	h, repo := newTestHandler(nil)
	repo.appts[1].Cancelled = true

	rec := httptest.NewRecorder()
	h.CreateSession(rec, sessionRequest("1", 10))

	if rec.Code != http.StatusPreconditionFailed {
		t.Fatalf("expected 412, got %d", rec.Code)
	}
}

func TestCreateSessionGatewayDown(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer down.Close()

	h, _ := newTestHandler(&PaymobClient{
		BaseURL:    down.URL,
		HTTPClient: &http.Client{Timeout: time.Second},
	})

	rec := httptest.NewRecorder()
	h.CreateSession(rec, sessionRequest("1", 10))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}
