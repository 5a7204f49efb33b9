package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("session required")
	ErrNotFound     = errors.New("not found")
	ErrUpstream     = errors.New("analytics backend failed")
	ErrInternal     = errors.New("internal error")
)

// Error is a handler failure. Its message is what the client sees; Op and
// Kind classify it.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// WrapKind attaches an operation and a kind to err.
func WrapKind(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// NewKind reports a failure of kind in op with no further detail.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}
