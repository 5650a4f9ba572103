package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func call(t *testing.T, h http.Handler, header, value string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/products", nil)
	if value != "" {
		req.Header.Set(header, value)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAPIKey_PassThrough(t *testing.T) {
	cases := []struct {
		name, mode, key string
	}{
		{"mode none", "none", "secret"},
		{"empty mode", "", "secret"},
		{"no key configured", "apikey", ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			h := APIKey(c.mode, "x-api-key", c.key)(okHandler)
			if rec := call(t, h, "x-api-key", ""); rec.Code != http.StatusNoContent {
				t.Errorf("got %d, want 204", rec.Code)
			}
		})
	}
}

func TestAPIKey_Valid(t *testing.T) {
	h := APIKey("apikey", "x-api-key", "secret")(okHandler)
	if rec := call(t, h, "X-Api-Key", "secret"); rec.Code != http.StatusNoContent {
		t.Errorf("got %d, want 204", rec.Code)
	}
}

func TestAPIKey_Rejected(t *testing.T) {
	h := APIKey("apikey", "x-api-key", "secret")(okHandler)
	for name, value := range map[string]string{"missing": "", "wrong": "nope"} {
		t.Run(name, func(t *testing.T) {
			rec := call(t, h, "x-api-key", value)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("got %d, want 401", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), "invalid api key") {
				t.Errorf("body: got %q", rec.Body.String())
			}
		})
	}
}

func TestAPIKey_CustomHeader(t *testing.T) {
	h := APIKey("apikey", "x-cc-key", "secret")(okHandler)
	if rec := call(t, h, "x-api-key", "secret"); rec.Code != http.StatusUnauthorized {
		t.Errorf("default header should not be accepted, got %d", rec.Code)
	}
	if rec := call(t, h, "x-cc-key", "secret"); rec.Code != http.StatusNoContent {
		t.Errorf("custom header: got %d, want 204", rec.Code)
	}
}
