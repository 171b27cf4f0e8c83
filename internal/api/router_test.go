package api

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/maraichr/vectorsync/internal/ingestion"
)

type stubQueue struct{ n int }

func (q *stubQueue) Enqueue(context.Context, ingestion.SyncJob) (string, error) {
	q.n++
	return "1-0", nil
}

func TestRouter_DevModeTrigger(t *testing.T) {
	q := &stubQueue{}
	r := NewRouter(slog.New(slog.NewTextHandler(io.Discard, nil)), RouterDeps{Producer: q})
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/sync", "application/json", bytes.NewReader([]byte(`{"mode":"retry"}`)))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if q.n != 1 {
		t.Errorf("expected one enqueue, got %d", q.n)
	}

	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz: expected 200, got %d", resp.StatusCode)
	}
}

func TestRouter_WebhookDisabledWithoutSecret(t *testing.T) {
	r := NewRouter(slog.New(slog.NewTextHandler(io.Discard, nil)), RouterDeps{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/github", bytes.NewReader([]byte("{}")))
	req.Header.Set("X-Hub-Signature-256", "sha256=00")

	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
