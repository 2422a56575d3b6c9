// Package setup ties key detection, generation, deployment, configuration,
// and verification into one setup run, and layers the credential fallback
// chain on top.
package setup

import "github.com/mhoffm/clusterkey/internal/errors"

// Error categories surfaced in a SetupResult.
const (
	CategoryConfiguration = "configuration"
	CategoryKeyGeneration = "key-generation"
	CategoryKeyDeployment = "key-deployment"
	CategoryConnection    = "connection"
	CategoryNoFallback    = "no-fallback-available"
	CategoryUnknown       = "unknown"
)

// ResultError carries the category and message of a failed run.
type ResultError struct {
	Category string
	Message  string
}

// Result is the structured outcome of a setup run. Freshly constructed per
// invocation, returned by value, and not mutated after return.
//
// A completed run always has either Success=true with a populated KeyPath,
// or Success=false with a populated Err.
type Result struct {
	Success              bool
	KeyPath              string
	KeyAlreadyExisted    bool
	KeyDeployed          bool
	ConnectionTested     bool
	UsedPasswordFallback bool
	Err                  *ResultError
	Details              map[string]string
}

// newResult creates an empty result with an initialized details map.
func newResult() Result {
	return Result{Details: make(map[string]string)}
}

// fail marks the result failed with a category and message.
func (r *Result) fail(category, message string) {
	r.Success = false
	r.Err = &ResultError{Category: category, Message: message}
}

// failFromError maps a structured error into the result's error field.
func (r *Result) failFromError(err error) {
	r.fail(categoryForError(err), err.Error())
}

// note records a diagnostic detail.
func (r *Result) note(key, value string) {
	if r.Details == nil {
		r.Details = make(map[string]string)
	}
	r.Details[key] = value
}

// categoryForError maps error taxonomy codes to result categories.
func categoryForError(err error) string {
	switch errors.Code(err) {
	case errors.ErrConfig:
		return CategoryConfiguration
	case errors.ErrKeygen:
		return CategoryKeyGeneration
	case errors.ErrDeploy:
		return CategoryKeyDeployment
	case errors.ErrConnect, errors.ErrSSH:
		return CategoryConnection
	case errors.ErrFallback:
		return CategoryNoFallback
	default:
		return CategoryUnknown
	}
}
