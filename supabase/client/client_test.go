package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestBucketUploadDownloadDelete(t *testing.T) {
	var uploaded []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != "key" || r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing auth headers")
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/storage/v1/object/uploads/documents/a.pdf":
			if r.Header.Get("x-upsert") != "true" {
				t.Errorf("expected upsert header")
			}
			uploaded, _ = io.ReadAll(r.Body)
			w.Write([]byte(`{"Key":"uploads/documents/a.pdf"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/storage/v1/object/uploads/documents/a.pdf":
			w.Write(uploaded)
		case r.Method == http.MethodDelete && r.URL.Path == "/storage/v1/object/uploads":
			body, _ := io.ReadAll(r.Body)
			if !strings.Contains(string(body), `"documents/a.pdf"`) {
				t.Errorf("unexpected delete body %s", body)
			}
			w.Write([]byte(`[]`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"Object not found"}`))
		}
	}))
	defer server.Close()

	c, err := New(Config{URL: server.URL, APIKey: "key", MaxRetries: -1})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	bucket := c.Storage().From("uploads")
	ctx := context.Background()

	if err := bucket.Upload(ctx, "documents/a.pdf", []byte("%PDF"), "application/pdf"); err != nil {
		t.Fatalf("upload: %v", err)
	}
	data, err := bucket.Download(ctx, "documents/a.pdf")
	if err != nil || string(data) != "%PDF" {
		t.Fatalf("download = %q, %v", data, err)
	}
	if err := bucket.Delete(ctx, []string{"documents/a.pdf"}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	_, err = bucket.Download(ctx, "missing.pdf")
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound || apiErr.Message != "Object not found" {
		t.Fatalf("expected not found error, got %v", err)
	}

	if got := bucket.PublicURL("avatars/me.png"); got != server.URL+"/storage/v1/object/public/uploads/avatars/me.png" {
		t.Fatalf("public url = %s", got)
	}
}

func TestNewRequiresURLAndKey(t *testing.T) {
	if _, err := New(Config{APIKey: "k"}); err == nil {
		t.Fatal("expected url error")
	}
	if _, err := New(Config{URL: "http://x"}); err == nil {
		t.Fatal("expected key error")
	}
}

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Minute})
	cb.now = func() time.Time { return now }

	cb.RecordFailure(errors.New("a"))
	if cb.State() != CircuitClosed {
		t.Fatal("one failure should not open the circuit")
	}
	cb.RecordFailure(errors.New("b"))
	if err := cb.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected open circuit, got %v", err)
	}

	now = now.Add(2 * time.Minute)
	if err := cb.Allow(); err != nil {
		t.Fatalf("expected half-open probe, got %v", err)
	}
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("state = %s", cb.State())
	}
	cb.RecordSuccess()
	if cb.State() != CircuitClosed {
		t.Fatalf("state = %s, want closed", cb.State())
	}
}
