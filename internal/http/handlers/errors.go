// Package handlers defines HTTP-layer error codes used across the ops API.
// The constants give clients a stable, machine-readable taxonomy next to the
// human-readable messages; handlers pick the most specific code and pass it
// to fail() with the matching HTTP status.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeReportFailed = "report_failed"
)
