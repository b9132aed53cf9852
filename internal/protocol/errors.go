package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingType is returned for a well-formed object without a type.
	ErrMissingType = errors.New("message has no type")
	// ErrUnknownType is returned for a type the server does not accept.
	ErrUnknownType = errors.New("unrecognized message type")
)

// ParseError reports a line that could not be decoded into its variant.
type ParseError struct {
	Type Type
	Err  error
}

func (e *ParseError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("parse message: %v", e.Err)
	}
	return fmt.Sprintf("parse %s message: %v", e.Type, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
