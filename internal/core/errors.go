package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers both a missing movement and one owned by another user.
	ErrNotFound = errors.New("movement not found")

	// ErrEmptyResult marks a query that legitimately returned no rows.
	ErrEmptyResult = errors.New("empty result")

	// ErrEmptyExport is reported when a user has nothing to export.
	ErrEmptyExport = errors.New("nothing to export")

	// ErrNotACommand is returned for text that does not start with a slash.
	ErrNotACommand = errors.New("not a command")

	// ErrUnknownCommand is returned for an unrecognised command keyword.
	ErrUnknownCommand = errors.New("unknown command")
)

// ValidationError means the input did not match the grammar of its command.
type ValidationError struct {
	Command string
	Usage   string
	Reason  string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid %s: %s (usage: %s)", e.Command, e.Reason, e.Usage)
	}
	return fmt.Sprintf("invalid %s (usage: %s)", e.Command, e.Usage)
}

// PersistenceError wraps any failure of the underlying store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Persistence wraps err for op, or returns nil.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// DeliveryError wraps a failure handing a reply or file to the transport.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// IsPersistence reports whether err came from the store.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
