package control

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrMalformed    = errors.New("malformed control message")
	ErrInvalidColor = errors.New("invalid color literal")
)

// ErrorKind classifies a DecodeError.
type ErrorKind int

const (
	Malformed ErrorKind = iota + 1
	InvalidColor
)

func (k ErrorKind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case InvalidColor:
		return "invalid_color"
	default:
		return "unknown"
	}
}

// DecodeError reports why a payload could not be fully decoded. Payload holds
// the raw bytes for diagnostics.
type DecodeError struct {
	Kind    ErrorKind
	Payload []byte
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return e.sentinel().Error()
	}
	return fmt.Sprintf("%s: %v", e.sentinel(), e.Err)
}

// Unwrap exposes both the sentinel and the cause to errors.Is/As.
func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.sentinel()}
	}
	return []error{e.sentinel(), e.Err}
}

func (e *DecodeError) sentinel() error {
	if e.Kind == InvalidColor {
		return ErrInvalidColor
	}
	return ErrMalformed
}
