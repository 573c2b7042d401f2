package ledger

import (
	"errors"
	"fmt"
	"ledger-server/src/db"
)

// ValidationError reports a request that was rejected before any write.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// NotFoundError reports an unknown account, investment or transaction id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// AuthError reports a call made without an active session or tenant.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string { return "auth: " + e.Message }

// ConsistencyError reports a broken pairing discovered mid-operation, such as
// a missing transfer sibling or investment position during reversal.
type ConsistencyError struct {
	Message string
}

func (e *ConsistencyError) Error() string { return "consistency: " + e.Message }

// TransientStoreError wraps a retryable store failure.
type TransientStoreError struct {
	Err error
}

func (e *TransientStoreError) Error() string { return "store unavailable: " + e.Err.Error() }
func (e *TransientStoreError) Unwrap() error { return e.Err }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func inconsistent(format string, args ...any) error {
	return &ConsistencyError{Message: fmt.Sprintf(format, args...)}
}

// storeErr translates store sentinels into the engine taxonomy. kind and id
// name the record for NotFoundError.
func storeErr(err error, kind, id string) error {
	if err == nil {
		return nil
	}
	var (
		ve *ValidationError
		ne *NotFoundError
		ae *AuthError
		ce *ConsistencyError
		te *TransientStoreError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &ne), errors.As(err, &ae), errors.As(err, &ce), errors.As(err, &te):
		return err
	case errors.Is(err, db.ErrNotFound):
		return &NotFoundError{Kind: kind, ID: id}
	case db.IsTransient(err):
		return &TransientStoreError{Err: err}
	}
	return err
}
