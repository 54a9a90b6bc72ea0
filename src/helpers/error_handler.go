package helpers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stock-dashboard/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type DashboardError struct {
	Message string
	Cause   error
}

func (e *DashboardError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *DashboardError) Unwrap() error {
	return e.Cause
}

type ConfigurationError struct{ DashboardError }
type DatabaseError struct{ DashboardError }

// ValidationError rejects input before any network call is made.
type ValidationError struct{ DashboardError }

// IncompleteDataError marks a well-formed upstream payload that cannot be shown.
type IncompleteDataError struct {
	DashboardError
	Symbol string
}

// CancellationError wraps an aborted request. It is never shown to the user.
type CancellationError struct{ DashboardError }

// TransportError is a network failure or a non-2xx response. Dataset names
// the resource that was being fetched ("profile", "quote", ...).
type TransportError struct {
	DashboardError
	Dataset    string
	StatusCode int
}

// ErrDuplicate is returned by stores when a unique key already exists.
var ErrDuplicate = errors.New("duplicate entry")

// ErrNotFound is returned when the requested record or dataset does not exist.
var ErrNotFound = errors.New("not found")

// -----------------------------------------------------------------------------

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{DashboardError{Message: fmt.Sprintf(format, args...)}}
}

// -----------------------------------------------------------------------------

func NewIncompleteDataError(symbol string) *IncompleteDataError {
	return &IncompleteDataError{
		DashboardError: DashboardError{Message: fmt.Sprintf("Data for %q is currently unavailable or incomplete.", symbol)},
		Symbol:         symbol,
	}
}

// -----------------------------------------------------------------------------

// NewTransportError wraps cause. Context cancellation (not deadline expiry) is
// reported as a CancellationError instead so callers can swallow it.
func NewTransportError(dataset string, status int, cause error) error {
	if status == 0 && errors.Is(cause, context.Canceled) {
		return &CancellationError{DashboardError{Message: dataset + " request aborted", Cause: cause}}
	}
	msg := dataset + " request failed"
	if status != 0 {
		msg = fmt.Sprintf("%s request failed (%d)", dataset, status)
	}
	return &TransportError{
		DashboardError: DashboardError{Message: msg, Cause: cause},
		Dataset:        dataset,
		StatusCode:     status,
	}
}

// -----------------------------------------------------------------------------

// IsCancellation reports whether err came from an aborted request.
func IsCancellation(err error) bool {
	if err == nil {
		return false
	}
	var ce *CancellationError
	return errors.As(err, &ce) || errors.Is(err, context.Canceled)
}

// -----------------------------------------------------------------------------

// StatusCode extracts the HTTP status from a TransportError, or 0.
func StatusCode(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff runs fn up to maxRetries+1 times with exponential backoff,
// stopping early when ctx is done or fn returns a non-retryable error.
func RetryWithBackoff(ctx context.Context, log *logger.Logger, operation string, maxRetries int, baseDelay time.Duration, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !Retryable(err) || attempt == maxRetries {
			break
		}

		delay := baseDelay * (1 << attempt)
		if log != nil {
			log.Warning("Attempt %d/%d failed for %s: %v. Retrying in %v", attempt+1, maxRetries+1, operation, err, delay)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

// -----------------------------------------------------------------------------

// Retryable reports whether repeating the request could succeed: transport
// failures without a status, throttling and server errors.
func Retryable(err error) bool {
	if IsCancellation(err) {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.StatusCode == 0 || te.StatusCode == 403 || te.StatusCode == 429 || te.StatusCode >= 500
	}
	var ve *ValidationError
	return !errors.As(err, &ve)
}
