// Package errs holds the typed failures returned by the services. Expected
// failures (validation, permission, not found, duplicates, guarded deletes)
// are returned as-is; anything else that escapes a transaction is wrapped as
// a PersistenceError or, on the consultant/role paths, a ConsultantSyncError.
package errs

import (
	"errors"
	"fmt"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

// ValidationError: malformed or missing input. Input echoes what the caller
// sent so a form can be re-displayed.
type ValidationError struct {
	Field   string
	Message string
	Input   any
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func Validation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

type DuplicateNameError struct {
	Entity string
	Name   string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Entity, e.Name)
}

// HasDependentsError: delete refused because other rows still reference
// the entity.
type HasDependentsError struct {
	Entity     string
	ID         uint
	Dependents string
	Count      int64
}

func (e *HasDependentsError) Error() string {
	return fmt.Sprintf("%s %d still has %d %s", e.Entity, e.ID, e.Count, e.Dependents)
}

type PermissionError struct {
	Actor  string
	Action string
}

func (e *PermissionError) Error() string {
	if e.Actor == "" {
		return fmt.Sprintf("permission denied: %s", e.Action)
	}
	return fmt.Sprintf("permission denied: %s may not %s", e.Actor, e.Action)
}

type NotFoundError struct {
	Entity string
	ID     any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}

func NotFound(entity string, id any) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

type ConsultantSyncError struct {
	Op    string
	Cause error
}

func (e *ConsultantSyncError) Error() string {
	return fmt.Sprintf("consultant sync failed during %s: %v", e.Op, e.Cause)
}

func (e *ConsultantSyncError) Unwrap() error { return e.Cause }

type PersistenceError struct {
	Op    string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() error { return e.Cause }

// IsExpected reports whether err is one of the recoverable failures that
// callers re-display rather than log as faults.
func IsExpected(err error) bool {
	var (
		v *ValidationError
		d *DuplicateNameError
		h *HasDependentsError
		p *PermissionError
		n *NotFoundError
	)
	return errors.As(err, &v) || errors.As(err, &d) || errors.As(err, &h) ||
		errors.As(err, &p) || errors.As(err, &n) || errors.Is(err, ErrInvalidCredentials)
}

// AsPersistence passes expected and already-classified errors through and
// wraps everything else.
func AsPersistence(op string, err error) error {
	if err == nil || IsExpected(err) {
		return err
	}
	var (
		s *ConsultantSyncError
		p *PersistenceError
	)
	if errors.As(err, &s) || errors.As(err, &p) {
		return err
	}
	return &PersistenceError{Op: op, Cause: err}
}

// AsSync is AsPersistence for the consultant/role reconciliation paths.
func AsSync(op string, err error) error {
	if err == nil || IsExpected(err) {
		return err
	}
	var s *ConsultantSyncError
	if errors.As(err, &s) {
		return err
	}
	return &ConsultantSyncError{Op: op, Cause: err}
}
