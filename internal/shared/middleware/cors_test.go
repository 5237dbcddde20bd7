package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIsOriginAllowed(t *testing.T) {
	allowed := []string{"app.tavola.test", "  admin.tavola.test:8443 ", "localhost"}

	tests := map[string]bool{
		"https://app.tavola.test":        true,
		"https://APP.tavola.test:3000":   true,
		"https://admin.tavola.test:8443": true,
		"https://admin.tavola.test":      false,
		"http://localhost:5173":          true,
		"https://eu.app.tavola.test":     false,
		"https://bank.example":           false,
		"://broken":                      false,
		"":                               false,
	}

	for origin, want := range tests {
		if got := isOriginAllowed(origin, allowed); got != want {
			t.Errorf("isOriginAllowed(%q) = %v, want %v", origin, got, want)
		}
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		allowed     []string
		method      string
		path        string
		origin      string
		wantStatus  int
		wantOrigin  string
		wantCreds   bool
		wantForward bool
	}{
		{
			name:        "open when no hosts configured",
			method:      http.MethodGet,
			path:        "/api/banking/accounts",
			origin:      "https://anywhere.test",
			wantStatus:  http.StatusOK,
			wantOrigin:  "*",
			wantForward: true,
		},
		{
			name:        "listed origin gets credentials",
			allowed:     []string{"app.tavola.test"},
			method:      http.MethodGet,
			path:        "/api/banking/accounts",
			origin:      "https://app.tavola.test",
			wantStatus:  http.StatusOK,
			wantOrigin:  "https://app.tavola.test",
			wantCreds:   true,
			wantForward: true,
		},
		{
			name:       "unlisted origin rejected",
			allowed:    []string{"app.tavola.test"},
			method:     http.MethodPost,
			path:       "/api/banking/connections",
			origin:     "https://bank.example",
			wantStatus: http.StatusForbidden,
		},
		{
			name:        "no origin passes through",
			allowed:     []string{"app.tavola.test"},
			method:      http.MethodGet,
			path:        "/api/banking/institutions",
			wantStatus:  http.StatusOK,
			wantForward: true,
		},
		{
			name:        "bank callback accepts any origin",
			allowed:     []string{"app.tavola.test"},
			method:      http.MethodGet,
			path:        "/bank-callback",
			origin:      "https://bank.example",
			wantStatus:  http.StatusOK,
			wantOrigin:  "*",
			wantForward: true,
		},
		{
			name:       "preflight answered here",
			allowed:    []string{"app.tavola.test"},
			method:     http.MethodOptions,
			path:       "/api/banking/requisitions/req-1/sync",
			origin:     "https://app.tavola.test",
			wantStatus: http.StatusNoContent,
			wantOrigin: "https://app.tavola.test",
			wantCreds:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			forwarded := false
			handler := CORS(tt.allowed)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				forwarded = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if forwarded != tt.wantForward {
				t.Errorf("forwarded = %v, want %v", forwarded, tt.wantForward)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := rr.Header().Get("Access-Control-Allow-Credentials") == "true"; got != tt.wantCreds {
				t.Errorf("Allow-Credentials = %v, want %v", got, tt.wantCreds)
			}
		})
	}
}
