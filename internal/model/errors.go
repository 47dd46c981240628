package model

import (
	"errors"
	"fmt"
)

// Base error types (sentinel errors).
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrTransport      = errors.New("transport failure")
	ErrParse          = errors.New("unexpected page format")
	ErrInvalidArchive = errors.New("invalid archive")
)

// TransportError represents a failed HTTP exchange.
type TransportError struct {
	URL        string // Requested URL
	StatusCode int    // HTTP status, 0 when no response was received
	Err        error  // Underlying error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("GET %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error, or ErrTransport for status failures.
func (e *TransportError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrTransport
}

// Is lets errors.Is(err, ErrTransport) match any TransportError.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// Retryable reports whether repeating the request may succeed.
// Network failures, 429 and 5xx are retryable; other statuses are not.
func (e *TransportError) Retryable() bool {
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == 429:
		return true
	default:
		return e.StatusCode >= 500
	}
}

// ParseError means the embedded folder listing could not be extracted.
// It indicates the upstream page format changed and is never retried.
type ParseError struct {
	Reason string // What was missing or malformed
	Err    error  // Underlying decode error, if any
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse listing: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("parse listing: %s", e.Reason)
}

// Unwrap returns ErrParse so callers can match the class.
func (e *ParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrParse, e.Err}
	}
	return []error{ErrParse}
}

// NotFoundError reports a year, state or composite folder that is absent.
type NotFoundError struct {
	Kind   string // "year", "state" or "composite"
	Name   string // Requested name
	Parent string // Folder that was searched, if any
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Parent != "" {
		return fmt.Sprintf("no %s folder %q in %s", e.Kind, e.Name, e.Parent)
	}
	return fmt.Sprintf("no %s folder %q", e.Kind, e.Name)
}

// Unwrap returns the underlying error type.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// ArchiveError is a non-fatal extraction failure. The archive is kept.
type ArchiveError struct {
	Path string // Archive path
	Err  error  // Underlying error
}

// Error implements the error interface.
func (e *ArchiveError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// Corrupt reports whether the archive itself is unreadable, as opposed to a
// filesystem failure while extracting it.
func (e *ArchiveError) Corrupt() bool {
	return errors.Is(e.Err, ErrInvalidArchive)
}

// ValidationError represents invalid or conflicting user input.
// It is raised before any network activity.
type ValidationError struct {
	Field   string // Flag or setting that failed validation
	Message string // Human-readable message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error type.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}
