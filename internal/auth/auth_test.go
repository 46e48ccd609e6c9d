package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Middleware(Config{Enabled: true, Token: "s3cret"})(ok)

	tests := []struct {
		name   string
		method string
		path   string
		header string
		want   int
	}{
		{"probe is public", http.MethodGet, "/healthz", "", http.StatusNoContent},
		{"catalog metadata is public", http.MethodGet, "/api/v1/catalog", "", http.StatusNoContent},
		{"catalog object is public", http.MethodGet, "/api/v1/catalog/25544", "", http.StatusNoContent},
		{"catalog fetch needs token", http.MethodPost, "/api/v1/catalog/fetch", "", http.StatusUnauthorized},
		{"screen needs token", http.MethodPost, "/api/v1/screen", "", http.StatusUnauthorized},
		{"wrong token", http.MethodPost, "/api/v1/screen", "Bearer nope", http.StatusUnauthorized},
		{"missing scheme", http.MethodPost, "/api/v1/screen", "s3cret", http.StatusUnauthorized},
		{"valid token", http.MethodPost, "/api/v1/screen", "Bearer s3cret", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestMiddlewareDisabled(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Middleware(Config{})(ok)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/screen", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
