package cloud

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNew_RequiresToken(t *testing.T) {
	_, err := New("https://api.example.com", "")
	if !errors.Is(err, ErrTokenMissing) {
		t.Errorf("New() error = %v, want ErrTokenMissing", err)
	}

	_, err = New("https://api.example.com", "   ")
	if !errors.Is(err, ErrTokenMissing) {
		t.Errorf("New() error = %v, want ErrTokenMissing", err)
	}
}

func TestFetchMQTTConfig(t *testing.T) {
	var gotAuth, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotMethod = r.Method
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":200,"message":"ok","data":{"deviceCertUrl":"https://cdn.example.com/bundle.bin"}}`))
	}))
	defer srv.Close()

	client, err := New(srv.URL, "token-123")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	cfg, err := client.FetchMQTTConfig(context.Background())
	if err != nil {
		t.Fatalf("FetchMQTTConfig() unexpected error: %v", err)
	}

	if cfg.DeviceCertURL != "https://cdn.example.com/bundle.bin" {
		t.Errorf("DeviceCertURL = %q, want bundle URL", cfg.DeviceCertURL)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %q, want POST", gotMethod)
	}
	if gotAuth != "Bearer token-123" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
}

func TestFetchMQTTConfig_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
	}{
		{"server error", http.StatusInternalServerError, `{}`},
		{"unauthorized", http.StatusUnauthorized, `{}`},
		{"missing cert url", http.StatusOK, `{"code":200,"message":"ok","data":{}}`},
		{"malformed json", http.StatusOK, `{not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client, err := New(srv.URL, "token-123")
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}

			_, err = client.FetchMQTTConfig(context.Background())
			if !errors.Is(err, ErrCertConfig) {
				t.Errorf("FetchMQTTConfig() error = %v, want ErrCertConfig", err)
			}
		})
	}
}

func TestDownloadBundle(t *testing.T) {
	payload := []byte{0x05, 'A', 'B', 'C', 0x00, 0x00, 0x01, 0x02}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	client, err := New(srv.URL, "token-123")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	data, err := client.DownloadBundle(context.Background(), srv.URL+"/bundle.bin")
	if err != nil {
		t.Fatalf("DownloadBundle() unexpected error: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("bundle = %x, want %x", data, payload)
	}
}

func TestDownloadBundle_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   []byte
	}{
		{"not found", http.StatusNotFound, nil},
		{"empty body", http.StatusOK, nil},
		{"oversized body", http.StatusOK, make([]byte, maxBundleSize+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write(tt.body)
			}))
			defer srv.Close()

			client, err := New(srv.URL, "token-123")
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}

			_, err = client.DownloadBundle(context.Background(), srv.URL+"/bundle.bin")
			if !errors.Is(err, ErrDownloadFailed) {
				t.Errorf("DownloadBundle() error = %v, want ErrDownloadFailed", err)
			}
		})
	}
}
