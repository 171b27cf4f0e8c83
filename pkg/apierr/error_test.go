package apierr

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestError_WrapAndResponse(t *testing.T) {
	cause := errors.New("xadd: connection refused")
	e := EnqueueFailed(cause)

	if !errors.Is(e, cause) {
		t.Error("expected cause to unwrap")
	}
	if e.Status() != http.StatusInternalServerError {
		t.Errorf("got status %d", e.Status())
	}
	resp := e.Response()
	if resp.Error.Code != CodeEnqueueFailed || resp.Error.Message != "Failed to enqueue sync job" {
		t.Errorf("unexpected response %+v", resp)
	}
	if e.Error() != "ENQUEUE_FAILED: Failed to enqueue sync job: xadd: connection refused" {
		t.Errorf("unexpected error string %q", e.Error())
	}
}

func TestInvalidSyncJob_UsesCauseAsMessage(t *testing.T) {
	e := InvalidSyncJob(errors.New("files job requires at least one file"))
	if e.Message() != "files job requires at least one file" || e.Status() != http.StatusBadRequest {
		t.Errorf("unexpected error %+v", e.Response())
	}
}

func TestInvalidRevision_NamesField(t *testing.T) {
	e := InvalidRevision("to_commit", "-x")
	if e.Field() != "to_commit" || e.Response().Error.Field != "to_commit" {
		t.Errorf("unexpected response %+v", e.Response())
	}
	if e.Error() != "INVALID_REVISION: Invalid git revision -x (to_commit)" {
		t.Errorf("unexpected error string %q", e.Error())
	}
}

func TestWrite_TemporaryErrorSetsRetryAfter(t *testing.T) {
	tests := []struct {
		name       string
		err        *Error
		retryAfter string
	}{
		{"queue unavailable", QueueUnavailable(), "30"},
		{"bad body", InvalidRequestBody(), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Write(rec, nil, tt.err)
			if rec.Code != tt.err.Status() {
				t.Errorf("status = %d, want %d", rec.Code, tt.err.Status())
			}
			if got := rec.Header().Get("Retry-After"); got != tt.retryAfter {
				t.Errorf("Retry-After = %q, want %q", got, tt.retryAfter)
			}
			if strings.Contains(rec.Body.String(), `"field"`) {
				t.Errorf("field must be omitted when unset: %s", rec.Body.String())
			}
		})
	}
}
