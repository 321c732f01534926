package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAuthMiddleware(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret")

	token, err := GenerateToken(42, RoleUser, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var gotID uint
	var gotRole string
	handler := AuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = GetUserIDFromContext(r)
		gotRole, _ = GetRoleFromContext(r)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotID != 42 {
		t.Errorf("expected user id 42 in context, got %d", gotID)
	}
	if gotRole != RoleUser {
		t.Errorf("expected role %q in context, got %q", RoleUser, gotRole)
	}
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret")

	handler := AuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run without a token")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthMiddlewareRejectsBadToken(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret")

	handler := AuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run with a garbage token")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthMiddlewareRejectsWrongKey(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret")
	token, err := GenerateToken(42, RoleUser, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Setenv("SECRET_KEY", "rotated-secret")
	handler := AuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run with a token signed under another key")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret")

	doctorToken, err := GenerateToken(7, RoleDoctor, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	handler := RequireRole(RoleUser, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+doctorToken)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for wrong role, got %d", rec.Code)
	}

	userToken, err := GenerateToken(7, RoleUser, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	rec = httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for matching role, got %d", rec.Code)
	}
}

func TestExpiredToken(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret")

	token, err := GenerateToken(42, RoleUser, -time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	handler := AuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run with an expired token")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
