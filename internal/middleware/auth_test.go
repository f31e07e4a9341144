package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIKeyAuth(t *testing.T) {
	var gotClient string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClient = GetClientFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := APIKeyAuth(map[string]string{"soc": "secret-1"})(next)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing header", "/v1/sessions/a/state", "", http.StatusUnauthorized},
		{"wrong key", "/v1/sessions/a/state", "Bearer nope", http.StatusUnauthorized},
		{"bearer key", "/v1/sessions/a/state", "Bearer secret-1", http.StatusOK},
		{"bare key", "/v1/sessions/a/state", "secret-1", http.StatusOK},
		{"health is public", "/health", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/a/state", nil)
	req.Header.Set("Authorization", "Bearer secret-1")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "soc", gotClient)
}

func TestAPIKeyAuth_DisabledWithoutKeys(t *testing.T) {
	h := APIKeyAuth(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/a/state", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
