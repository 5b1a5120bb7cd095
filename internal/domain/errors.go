package domain

import (
	"errors"
	"strings"
)

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidText        = errors.New("text must not be empty")
	ErrInvalidDueTime     = errors.New("due_in_minutes is out of range")
	ErrInvalidDestination = errors.New("destination must carry a conversation id, channel id and service url")
	ErrAlreadyRunning     = errors.New("scheduler is already running")

	ErrStorage      = errors.New("storage error")
	ErrEncoding     = errors.New("destination encoding error")
	ErrDecoding     = errors.New("destination decoding error")
	ErrDispatch     = errors.New("dispatch error")
	ErrNoConvention = errors.New("host exposes no supported continue-conversation convention")
)

// StorageError reports that the store was unreachable or returned garbage.
// It is fatal for the operation that raised it; nothing retries internally.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string        { return "storage: " + e.Op + ": " + e.Err.Error() }
func (e *StorageError) Unwrap() error        { return e.Err }
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// NewStorageError wraps err for operation op. A nil err stays nil.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// EncodingError means a live destination handle could not be serialized.
// This is a programmer error in the host integration, not a runtime condition.
type EncodingError struct {
	Err error
}

func (e *EncodingError) Error() string        { return "encode destination: " + e.Err.Error() }
func (e *EncodingError) Unwrap() error        { return e.Err }
func (e *EncodingError) Is(target error) bool { return target == ErrEncoding }

// DecodingError means persisted destination bytes are malformed or foreign.
type DecodingError struct {
	Err error
}

func (e *DecodingError) Error() string        { return "decode destination: " + e.Err.Error() }
func (e *DecodingError) Unwrap() error        { return e.Err }
func (e *DecodingError) Is(target error) bool { return target == ErrDecoding }

// ConventionFailure records one failed delivery attempt.
type ConventionFailure struct {
	Convention string
	Err        error
}

// DispatchError is returned once every delivery convention has failed.
// Unwrap yields the last failure.
type DispatchError struct {
	Attempts []ConventionFailure
}

func (e *DispatchError) Error() string {
	if len(e.Attempts) == 0 {
		return "dispatch: " + ErrNoConvention.Error()
	}
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = a.Convention + ": " + a.Err.Error()
	}
	return "dispatch: all conventions failed (" + strings.Join(parts, "; ") + ")"
}

func (e *DispatchError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return ErrNoConvention
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

func (e *DispatchError) Is(target error) bool { return target == ErrDispatch }
