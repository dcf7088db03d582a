package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrMissingCredentials is returned before any network call when the
	// username or the secret is empty.
	ErrMissingCredentials = errors.New("invalid user details: could not log in to GitHub")

	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassCancelled represents a request abandoned because its context was done.
	ErrorClassCancelled ErrorClass = "cancelled"

	// ErrorClassRateLimit represents 429 and rate-limit 403 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassValidation represents 422 responses, e.g. paging past the
	// first 1000 search results.
	ErrorClassValidation ErrorClass = "validation"

	// ErrorClassClient represents other 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// APIError represents a GitHub request failure with its classification.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("GitHub %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("GitHub %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// ClassOf returns the ErrorClass of err, or "" when err is not an *APIError.
func ClassOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorClass
	}
	return ""
}

// IsRateLimited reports whether err means the remote source refused further
// requests for this search. Validation rejections count as rate limits.
func IsRateLimited(err error) bool {
	switch ClassOf(err) {
	case ErrorClassRateLimit, ErrorClassValidation:
		return true
	default:
		return false
	}
}

// IsCancelled reports whether err stems from a done context.
func IsCancelled(err error) bool {
	return ClassOf(err) == ErrorClassCancelled || errors.Is(err, ErrContextCancelled)
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer, ErrorClassNetwork:
		return true
	default:
		// rate limits, validation and client errors end the search instead
		return false
	}
}
