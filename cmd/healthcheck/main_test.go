package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthURL(t *testing.T) {
	tests := []struct {
		name   string
		listen string
		want   string
	}{
		{"unset", "", "http://127.0.0.1:8080/api/v1/health"},
		{"all interfaces", "0.0.0.0:9000", "http://127.0.0.1:9000/api/v1/health"},
		{"port only", ":9000", "http://127.0.0.1:9000/api/v1/health"},
		{"ipv6 any", "[::]:9000", "http://127.0.0.1:9000/api/v1/health"},
		{"explicit host", "10.0.0.5:9000", "http://10.0.0.5:9000/api/v1/health"},
		{"malformed", "localhost", "http://127.0.0.1:8080/api/v1/health"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, healthURL(tt.listen))
		})
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"healthy", http.StatusOK, `{"status":"ok","time":"2026-03-02T09:00:00Z"}`, ""},
		{"server error", http.StatusServiceUnavailable, `{"status":"ok"}`, "answered 503"},
		{"wrong status", http.StatusOK, `{"status":"starting"}`, `status "starting"`},
		{"not json", http.StatusOK, `<html>`, "decode health response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v1/health", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := check(context.Background(), srv.Client(), srv.URL+"/api/v1/health")
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestCheck_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/api/v1/health"
	srv.Close()

	assert.Error(t, check(context.Background(), http.DefaultClient, url))
}
