package apierr

import "net/http"

// --- Common ---

func InvalidRequestBody() *Error {
	return New(CodeInvalidRequestBody, http.StatusBadRequest, "Invalid request body")
}

func InternalError(cause error) *Error {
	return Wrap(CodeInternalError, http.StatusInternalServerError, "Internal server error", cause)
}

func NotImplemented(feature string) *Error {
	return New(CodeNotImplemented, http.StatusNotImplemented, feature+" is not implemented yet")
}

// --- Sync jobs ---

func InvalidSyncMode() *Error {
	return New(CodeInvalidSyncMode, http.StatusBadRequest, "mode must be one of: commit-range, files, retry, reindex-all")
}

func InvalidSyncJob(cause error) *Error {
	return Wrap(CodeInvalidSyncJob, http.StatusBadRequest, cause.Error(), cause)
}

func InvalidRevision(field, rev string) *Error {
	return New(CodeInvalidRevision, http.StatusBadRequest, "Invalid git revision "+rev).onField(field)
}

func EnqueueFailed(cause error) *Error {
	return Wrap(CodeEnqueueFailed, http.StatusInternalServerError, "Failed to enqueue sync job", cause)
}

func QueueUnavailable() *Error {
	return New(CodeQueueUnavailable, http.StatusServiceUnavailable, "Job queue is not configured")
}

// --- Journal ---

func JournalNotFound() *Error {
	return New(CodeJournalNotFound, http.StatusNotFound, "No failure journal found")
}

func JournalReadFailed(cause error) *Error {
	return Wrap(CodeJournalReadFailed, http.StatusInternalServerError, "Failed to read failure journal", cause)
}

func ArchiveUnavailable() *Error {
	return New(CodeArchiveUnavailable, http.StatusNotFound, "Journal archive is not configured")
}

// --- Webhook ---

func MissingSignature() *Error {
	return New(CodeMissingSignature, http.StatusUnauthorized, "Missing X-Hub-Signature-256 header")
}

func InvalidSignature() *Error {
	return New(CodeInvalidSignature, http.StatusUnauthorized, "Invalid webhook signature")
}

func WebhookNotEnabled() *Error {
	return New(CodeWebhookNotEnabled, http.StatusNotFound, "GitHub webhook is not configured")
}

func UnsupportedEvent(event string) *Error {
	return New(CodeUnsupportedEvent, http.StatusAccepted, "Ignoring event "+event)
}

func RepositoryMismatch() *Error {
	return New(CodeRepositoryMismatch, http.StatusAccepted, "Push is for a different repository or branch")
}

// --- Health ---

func QueueNotReady() *Error {
	return New(CodeQueueNotReady, http.StatusServiceUnavailable, "Job queue not ready")
}

// --- Auth ---

func Unauthorized() *Error {
	return New(CodeUnauthorized, http.StatusUnauthorized, "Authentication required")
}

func Forbidden() *Error {
	return New(CodeForbidden, http.StatusForbidden, "Insufficient scope")
}
