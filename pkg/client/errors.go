package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCanceled is returned when the context is canceled during retry.
	ErrContextCanceled = errors.New("context canceled")

	// ErrBatchTooLarge is returned when a submission exceeds the destination's
	// per-request record limit.
	ErrBatchTooLarge = errors.New("batch exceeds destination limit")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors (permanent, not retried).
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors (transient).
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 throttling responses (transient).
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport/timeout errors (transient).
	ErrorClassNetwork ErrorClass = "network"
)

// APIError represents an HTTP error response from the Animal API.
type APIError struct {
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("animal api %s error (status %d): %s: %v",
			e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("animal api %s error (status %d): %s",
		e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to an error class. 429 is
// throttling and therefore transient; every other 4xx is permanent.
func classifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case statusCode >= 400 && statusCode < 500:
		return ErrorClassClient
	case statusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// classifyErr determines the error class of any failure: APIErrors carry
// their own class, everything else is a transport failure.
func classifyErr(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Class
	}
	return ErrorClassNetwork
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx means the request itself is invalid; retrying cannot help
		return false
	case ErrorClassServer:
		return true
	case ErrorClassRateLimit:
		return true
	case ErrorClassNetwork:
		return true
	default:
		return false
	}
}
