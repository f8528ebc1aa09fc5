package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSendJSONBody(t *testing.T) {
	var gotContentType string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	s := NewHTTPSender(0)
	resp, err := s.Send(context.Background(), http.MethodPost, srv.URL,
		map[string]string{"X-Request-ID": "req-1"},
		map[string]any{"prompt": "hello"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if resp.Body != `{"ok":true}` {
		t.Errorf("Body = %q", resp.Body)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}
	if gotBody["prompt"] != "hello" {
		t.Errorf("decoded body = %v", gotBody)
	}
}

func TestSendRawStringBody(t *testing.T) {
	var gotContentType, gotBody string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
	}))
	defer srv.Close()

	s := NewHTTPSender(0)
	if _, err := s.Send(context.Background(), http.MethodPost, srv.URL, nil, "raw payload"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotBody != "raw payload" {
		t.Errorf("body = %q, want raw payload", gotBody)
	}
	if gotContentType != "" {
		t.Errorf("Content-Type = %q, want unset for raw bodies", gotContentType)
	}
}

func TestSendForwardsHeaders(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Correlation-ID")
	}))
	defer srv.Close()

	s := NewHTTPSender(0)
	if _, err := s.Send(context.Background(), http.MethodGet, srv.URL,
		map[string]string{"X-Correlation-ID": "corr-1"}, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotHeader != "corr-1" {
		t.Errorf("forwarded header = %q, want corr-1", gotHeader)
	}
}

func TestSendConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	s := NewHTTPSender(time.Second)
	_, err := s.Send(context.Background(), http.MethodGet, srv.URL, nil, nil)
	if err == nil {
		t.Fatal("Send to closed server succeeded, want error")
	}

	var terr *Error
	if !errors.As(err, &terr) {
		t.Fatalf("error type = %T, want *transport.Error", err)
	}
	if terr.Op != "send" {
		t.Errorf("Op = %q, want send", terr.Op)
	}
}

func TestSendNon2xxIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	s := NewHTTPSender(0)
	resp, err := s.Send(context.Background(), http.MethodGet, srv.URL, nil, nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want 502", resp.StatusCode)
	}
	if resp.Body != "upstream down" {
		t.Errorf("Body = %q", resp.Body)
	}
}
