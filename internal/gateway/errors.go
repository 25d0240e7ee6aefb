package gateway

import (
	"errors"
	"fmt"
)

// Kind classifies a gateway failure.
type Kind int

const (
	// KindTransport: the backend could not be reached or did not answer in time.
	KindTransport Kind = iota + 1
	// KindServer: the backend answered with a 5xx or a body we could not decode.
	KindServer
	// KindRejected: the backend understood the request and refused it.
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport failure"
	case KindServer:
		return "server error"
	case KindRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is.
var (
	ErrTransport = errors.New("ledger backend unreachable")
	ErrServer    = errors.New("ledger backend error")
	ErrRejected  = errors.New("ledger backend rejected the operation")
)

// Error describes a failed gateway operation.
type Error struct {
	Op      string // "balance", "transactions", "change", "submit", "mine"
	Kind    Kind
	Status  int    // HTTP status, 0 for transport failures
	Message string // server-supplied message, if any
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrServer:
		return e.Kind == KindServer
	case ErrRejected:
		return e.Kind == KindRejected
	}
	return false
}

// KindOf returns the kind of a gateway error, or 0 if err is not one.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return 0
}
