package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorizing failures across the setup flow.
const (
	ErrConfig   = "CONFIG"   // bad or missing identity fields, unusable config file
	ErrKeygen   = "KEYGEN"   // ssh-keygen missing or exited non-zero
	ErrDeploy   = "DEPLOY"   // both deployment paths failed
	ErrConnect  = "CONNECT"  // probe/verify connection failures
	ErrFallback = "FALLBACK" // no credential source produced a password
	ErrSSH      = "SSH"      // transport-level plumbing
)

// Error represents a structured error with code, message, suggestion, and optional cause.
// Rendered as:
//
//	✗ <What failed>
//
//	  <Why it failed - technical details>
//
//	  <How to fix it - actionable steps>
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

// New creates a new structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// Wrap wraps an existing error with a message, defaulting to ErrSSH code.
func Wrap(err error, message string) *Error {
	return &Error{
		Code:    ErrSSH,
		Message: message,
		Cause:   err,
	}
}

// WrapWithCode wraps an existing error with a specific code, message, and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// Error implements the error interface with the what/why/fix layout.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Cause.Error()))
	}

	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode checks if an error is a structured Error with the given code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var ckErr *Error
	if errors.As(err, &ckErr) {
		return ckErr.Code == code
	}
	return false
}

// Code extracts the code from a structured Error, or "" for any other error.
func Code(err error) string {
	var ckErr *Error
	if errors.As(err, &ckErr) {
		return ckErr.Code
	}
	return ""
}
