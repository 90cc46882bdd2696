package domain

import (
	"errors"
	"fmt"
	"strconv"
)

// Each error kind unwraps to exactly one of these, so callers branch with
// errors.Is and adapters pick a status or exit code from the kind alone.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrValidation  = errors.New("validation failed")
	ErrUnavailable = errors.New("unavailable")
)

// NotFoundError names a missing entity. ID is optional.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Entity + " not found"
	}

	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func NewNotFoundError(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// NewPositionNotFoundError reports a position that is out of range or no
// longer holds the quote the caller saw.
func NewPositionNotFoundError(position int) error {
	return &NotFoundError{Entity: "quote at position", ID: strconv.Itoa(position)}
}

// DuplicateError rejects a quote whose text is already stored at Position.
type DuplicateError struct {
	Text     string
	Position int
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate quote %q at position %d", e.Text, e.Position)
}

func (e *DuplicateError) Unwrap() error { return ErrConflict }

func NewDuplicateError(text string, position int) error {
	return &DuplicateError{Text: text, Position: position}
}

// ValidationError rejects a single input field. Field may be empty when
// the rule spans several fields.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Message
	}

	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// InvalidFormatError rejects an import document. Index is the offending
// element, or -1 when the document itself is malformed.
type InvalidFormatError struct {
	Index  int
	Reason string
}

func (e *InvalidFormatError) Error() string {
	if e.Index < 0 {
		return "invalid document: " + e.Reason
	}

	return fmt.Sprintf("invalid document: item %d: %s", e.Index, e.Reason)
}

func (e *InvalidFormatError) Unwrap() error { return ErrValidation }

func NewInvalidFormatError(index int, reason string) error {
	return &InvalidFormatError{Index: index, Reason: reason}
}

// UnavailableError reports that a named dependency, usually the remote
// posts API, could not serve a request.
type UnavailableError struct {
	Service string
	Reason  string
}

func (e *UnavailableError) Error() string {
	msg := e.Service + " unavailable"
	if e.Reason != "" {
		msg += ": " + e.Reason
	}

	return msg
}

func (e *UnavailableError) Unwrap() error { return ErrUnavailable }

func NewUnavailableError(service, reason string) error {
	return &UnavailableError{Service: service, Reason: reason}
}

// StorageError wraps a failed read or write of the durable store. The
// in-memory copy stays authoritative, so it is reported and never fatal.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() []error { return []error{ErrUnavailable, e.Err} }

func NewStorageError(op, key string, err error) error {
	return &StorageError{Op: op, Key: key, Err: err}
}

// SyncError wraps the cause of a failed sync cycle and names the stage
// it failed in.
type SyncError struct {
	Stage string
	Err   error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s: %v", e.Stage, e.Err)
}

func (e *SyncError) Unwrap() []error { return []error{ErrUnavailable, e.Err} }

func NewSyncError(stage string, err error) error {
	return &SyncError{Stage: stage, Err: err}
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
func IsUnavailable(err error) bool { return errors.Is(err, ErrUnavailable) }

func IsDuplicate(err error) bool { return isA[*DuplicateError](err) }
func IsInvalidFormat(err error) bool { return isA[*InvalidFormatError](err) }
func IsStorage(err error) bool { return isA[*StorageError](err) }
func IsSync(err error) bool { return isA[*SyncError](err) }

func isA[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}
