// Package apperr defines the sentinel errors shared across layers.
package apperr

import "errors"

var (
	// ErrNotFound indicates the requested page or resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized indicates the document store rejected our credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRateLimited indicates the document store throttled the request.
	// Callers may retry with backoff.
	ErrRateLimited = errors.New("rate limited")
	// ErrValidation indicates a malformed property payload was rejected upstream.
	ErrValidation = errors.New("validation failed")
	// ErrMissingCredential indicates the store credential is absent from
	// configuration. Surfaced at first use, never retried.
	ErrMissingCredential = errors.New("missing credential")
)
