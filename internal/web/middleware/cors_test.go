package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOriginSetAllows(t *testing.T) {
	allowed := originSet{
		"https://app.example.com": {},
	}

	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{"empty origin", "", false},
		{"whitelisted", "https://app.example.com", true},
		{"not whitelisted", "https://evil.example.com", false},
		{"localhost http", "http://localhost:3000", true},
		{"localhost https", "https://localhost:8443", true},
		{"localhost no port", "http://localhost", true},
		{"loopback IP", "http://127.0.0.1:3000", true},
		{"localhost lookalike", "http://localhost.example.com", false},
		{"non-http scheme", "ftp://localhost", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := allowed.allows(tc.origin); got != tc.want {
				t.Errorf("allows(%q) = %v, want %v", tc.origin, got, tc.want)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := CORS()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight must not reach the next handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/identities", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", recorder.Code)
	}
	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("unexpected Allow-Origin header: %q", got)
	}
}

func TestCORSUnknownOrigin(t *testing.T) {
	called := false
	handler := CORS()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/identities", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if !called {
		t.Error("request must still reach the handler")
	}
	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unknown origin must not receive Allow-Origin, got %q", got)
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/identities", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	want := map[string]string{
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "no-referrer",
	}
	for header, value := range want {
		if got := recorder.Header().Get(header); got != value {
			t.Errorf("%s = %q, want %q", header, got, value)
		}
	}
}
