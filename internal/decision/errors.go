package decision

import "fmt"

// The control loop retries neither failure kind, but it logs the specific
// cause, so transport and parse failures stay distinct error types.

// TransportError covers network failures, non-200 statuses, and replies
// with no usable candidate content.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("decision transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError covers structurally unusable replies: malformed JSON or a
// reply missing required keys.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("decision reply unusable: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
