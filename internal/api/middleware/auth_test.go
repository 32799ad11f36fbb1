package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDashboardAuth(t *testing.T) {
	const token = "cr_test_token"
	auth := DashboardAuth(HashToken(token))

	handler := auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid token", "Bearer " + token, http.StatusOK},
		{"lowercase scheme", "bearer " + token, http.StatusOK},
		{"wrong token", "Bearer cr_wrong", http.StatusUnauthorized},
		{"missing header", "", http.StatusUnauthorized},
		{"no scheme", token, http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/personas", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestHashTokenStable(t *testing.T) {
	if HashToken("a") != HashToken("a") {
		t.Error("hashing is not deterministic")
	}
	if HashToken("a") == HashToken("b") {
		t.Error("different tokens must hash differently")
	}
	if len(HashToken("a")) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(HashToken("a")))
	}
}
