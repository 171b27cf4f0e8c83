package apierr

// Code is a machine-readable error code returned in API responses.
type Code string

// Common errors.
const (
	CodeInvalidRequestBody Code = "INVALID_REQUEST_BODY"
	CodeInternalError      Code = "INTERNAL_ERROR"
	CodeNotImplemented     Code = "NOT_IMPLEMENTED"
)

// Sync job errors.
const (
	CodeInvalidSyncMode  Code = "INVALID_SYNC_MODE"
	CodeInvalidSyncJob   Code = "INVALID_SYNC_JOB"
	CodeInvalidRevision  Code = "INVALID_REVISION"
	CodeEnqueueFailed    Code = "ENQUEUE_FAILED"
	CodeQueueUnavailable Code = "QUEUE_UNAVAILABLE"
)

// Journal errors.
const (
	CodeJournalNotFound    Code = "JOURNAL_NOT_FOUND"
	CodeJournalReadFailed  Code = "JOURNAL_READ_FAILED"
	CodeArchiveUnavailable Code = "ARCHIVE_UNAVAILABLE"
)

// Webhook errors.
const (
	CodeMissingSignature   Code = "MISSING_SIGNATURE"
	CodeInvalidSignature   Code = "INVALID_SIGNATURE"
	CodeWebhookNotEnabled  Code = "WEBHOOK_NOT_ENABLED"
	CodeUnsupportedEvent   Code = "UNSUPPORTED_EVENT"
	CodeRepositoryMismatch Code = "REPOSITORY_MISMATCH"
)

// Health errors.
const (
	CodeQueueNotReady Code = "QUEUE_NOT_READY"
)

// Auth errors.
const (
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
)
