package central

import (
	"errors"
	"fmt"
)

// Client errors. Transport failures are retried inside the HTTP client's
// backoff loop before they ever surface as NetworkError; the rest reach
// the caller untouched.
var (
	ErrSchemaMismatch = errors.New("central: response did not match the expected schema")
)

// NetworkError wraps a retryable transport failure (timeout, connection
// reset, 429, 5xx).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("central: network: %v", e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// BadStatusError wraps a non-retryable HTTP status.
type BadStatusError struct {
	Status int
	Body string
}

func (e *BadStatusError) Error() string {
	return fmt.Sprintf("central: bad status %d: %s", e.Status, e.Body)
}

// StarknetError mirrors the upstream {code, message} error envelope.
// BLOCK_NOT_FOUND signals "wait" to pollers; every other code surfaces
// as-is.
type StarknetError struct {
	Code string
	Message string
}

func (e *StarknetError) Error() string {
	return fmt.Sprintf("central: starknet error %s: %s", e.Code, e.Message)
}

// CodeBlockNotFound is the upstream code that means "not produced yet",
// distinguishing a polling gap from a genuine failure.
const CodeBlockNotFound = "StarknetErrorCode.BLOCK_NOT_FOUND"

// IsBlockNotFound reports whether err is the upstream "not yet available"
// signal.
func IsBlockNotFound(err error) bool {
	var se *StarknetError
	if errors.As(err, &se) {
		return se.Code == CodeBlockNotFound
	}
	return false
}
