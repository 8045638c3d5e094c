// Package errors provides error categorization and bounded retry with
// exponential backoff for node executions and collaborator calls.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"
)

// Category represents how an error should be handled.
type Category int

const (
	// CategoryTransient indicates retry will likely help.
	// Examples: timeouts, rate limits, connection resets, empty LLM output.
	CategoryTransient Category = iota

	// CategoryPermanent indicates retry won't help.
	// Examples: build validation failures, cancellation, bad configuration.
	CategoryPermanent
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// CategorizedError wraps an error with its category and retry context.
type CategorizedError struct {
	// Err is the underlying error.
	Err error

	// Category indicates how this error should be handled.
	Category Category

	// Retries is the number of attempts that were made.
	Retries int

	// Context describes what operation was being attempted.
	Context string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (category: %s, attempts: %d)",
			e.Context, e.Err, e.Category, e.Retries)
	}
	return fmt.Sprintf("%s (category: %s, attempts: %d)",
		e.Err, e.Category, e.Retries)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// Transient wraps an error as explicitly retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &CategorizedError{Err: err, Category: CategoryTransient}
}

// Permanent wraps an error as explicitly non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &CategorizedError{Err: err, Category: CategoryPermanent}
}

// Categorize classifies an error. Explicit CategorizedError wrappers win;
// otherwise well-known transient shapes (deadline, temporary network faults,
// connection resets) are recognized, and everything else is permanent.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent
	}

	var ce *CategorizedError
	if errors.As(err, &ce) {
		return ce.Category
	}

	// Cancellation is a caller decision, never worth retrying.
	if errors.Is(err, context.Canceled) {
		return CategoryPermanent
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTransient
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return CategoryTransient
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return CategoryTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CategoryTransient
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"rate limit", "too many requests", "timeout", "temporarily unavailable"} {
		if strings.Contains(msg, marker) {
			return CategoryTransient
		}
	}

	return CategoryPermanent
}

// IsTransient reports whether retrying the operation is likely to help.
func IsTransient(err error) bool {
	return Categorize(err) == CategoryTransient
}
