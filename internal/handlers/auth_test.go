package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"vapor_recovery/internal/service"
)

func TestAuthHandlers_SignIn(t *testing.T) {
	auth := &mockAuth{genTokenToken: "tok123"}
	s := &service.Service{Authorization: auth}
	r := newTestRouter(s)

	body := bytes.NewBufferString(`{"username":"operator","password":"p"}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/sign-in", body)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("sign-in status=%d, body=%s", w.Code, w.Body.String())
	}
	var m map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &m)
	if m["token"] != "tok123" {
		t.Fatalf("expected token tok123, got %v", m["token"])
	}
	if auth.lastGenUsername != "operator" || auth.lastGenPassword != "p" {
		t.Fatalf("credentials not forwarded: %q/%q", auth.lastGenUsername, auth.lastGenPassword)
	}

	// invalid body → 400
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/auth/sign-in", bytes.NewBufferString(`{"username":1}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad body, got %d", w.Code)
	}
}

func TestAuthHandlers_SignInRejected(t *testing.T) {
	auth := &mockAuth{genTokenErr: errors.New("invalid credentials")}
	r := newTestRouter(&service.Service{Authorization: auth})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/sign-in", bytes.NewBufferString(`{"username":"operator","password":"bad"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if bytes.Contains(w.Body.Bytes(), []byte("bad")) {
		t.Fatalf("response must not echo the password")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(&service.Service{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health status=%d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("go_goroutines")) {
		t.Fatalf("metrics status=%d", w.Code)
	}
}
