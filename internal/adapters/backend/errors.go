package backend

import (
	"errors"
	"fmt"
)

// ErrBackend matches every failure reported by Client.
var ErrBackend = errors.New("analytics backend call failed")

// Failure kinds, used as metric labels.
const (
	KindTransport = "transport"
	KindStatus    = "status"
	KindDecode    = "decode"
	KindReported  = "reported"
)

// Error describes a failed backend call. Message is the text the backend
// reported, if any; Status is 0 when no response was received.
type Error struct {
	Op      string
	Kind    string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%s: backend responded %d", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, ErrBackend)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is ErrBackend.
func (e *Error) Is(target error) bool { return target == ErrBackend }

// MessageOr returns the backend's message for err, or fallback when err
// carries none.
func MessageOr(err error, fallback string) string {
	var be *Error
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	return fallback
}
