package lifecycle

import "fmt"

// ValidationError rejects input before any ledger call is made
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// PersistenceError wraps a ledger failure with the operation that hit it
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// TokenWriteError means the ledger change went through but the client token
// could not be written. Records created by the operation stay in the ledger.
type TokenWriteError struct {
	Op  string
	Err error
}

func (e *TokenWriteError) Error() string {
	return fmt.Sprintf("%s: write session: %v", e.Op, e.Err)
}

func (e *TokenWriteError) Unwrap() error {
	return e.Err
}
