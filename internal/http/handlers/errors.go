// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP responses
// (via the `fail()` helper in this package). These codes provide clients with a stable,
// machine-readable error taxonomy that supplements human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes (e.g., bad_request, not_found, conflict) mirror common HTTP
//     status semantics to aid interoperability.
//   - Domain-specific codes (e.g., unknown_store, resolve_failed) describe
//     pipeline errors that cannot be conveyed by status alone.
//
// Example response:
//   {
//     "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//     "code": "refresh_in_progress",
//     "message": "a refresh for this store is already running"
//   }

package handlers

const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeConflict    = "conflict"
	ErrCodeRateLimited = "too_many_requests"
	ErrCodeInternal    = "internal_error"
	ErrCodeUnavailable = "upstream_unavailable"

	// Domain-specific:
	ErrCodeUnknownStore      = "unknown_store"
	ErrCodeInvalidRegion     = "invalid_region"
	ErrCodeInvalidGameID     = "invalid_game_id"
	ErrCodeResolveFailed     = "resolve_failed"
	ErrCodeRefreshInProgress = "refresh_in_progress"
	ErrCodeRefreshFailed     = "refresh_failed"
	ErrCodeListFailed        = "list_failed"
	ErrCodeMethodNotAllowed  = "method_not_allowed"
)
