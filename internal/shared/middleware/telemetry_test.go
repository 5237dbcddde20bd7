package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
)

func TestSpanName(t *testing.T) {
	var got string
	r := mux.NewRouter()
	r.HandleFunc("/api/banking/accounts/{id}/transactions", func(w http.ResponseWriter, req *http.Request) {
		got = spanName("", req)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/banking/accounts/acc-1/transactions", nil))
	if got != "GET /api/banking/accounts/{id}/transactions" {
		t.Errorf("spanName() = %q", got)
	}

	if name := spanName("", httptest.NewRequest(http.MethodPost, "/unrouted", nil)); name != "POST /unrouted" {
		t.Errorf("spanName() = %q, want POST /unrouted", name)
	}
}
