package kernel

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies kernel failures.
type ErrorKind uint8

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindAlreadyExists
	KindInvalidState
	KindInvalidArgument
	KindPermissionDenied
	KindOutOfMemory
)

func (k ErrorKind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindNotFound:
		return "not found"
	case KindAlreadyExists:
		return "already exists"
	case KindInvalidState:
		return "invalid state"
	case KindInvalidArgument:
		return "invalid argument"
	case KindPermissionDenied:
		return "permission denied"
	case KindOutOfMemory:
		return "out of memory"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. Every *Error matches the sentinel of its kind.
var (
	ErrInternal         = &Error{Kind: KindInternal}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrAlreadyExists    = &Error{Kind: KindAlreadyExists}
	ErrInvalidState     = &Error{Kind: KindInvalidState}
	ErrInvalidArgument  = &Error{Kind: KindInvalidArgument}
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied}
	ErrOutOfMemory      = &Error{Kind: KindOutOfMemory}
)

// Error is returned by every failing kernel operation.
type Error struct {
	Op   string
	Kind ErrorKind
	PID  ProcessID
	TID  ThreadID
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.PID != 0 {
		fmt.Fprintf(&b, "pid %d: ", e.PID)
	}
	if e.TID != 0 {
		fmt.Fprintf(&b, "tid %d: ", e.TID)
	}
	b.WriteString(e.Kind.String())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel (or an *Error) of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain.
//
// Errors that did not originate in the kernel are KindInternal.
func KindOf(err error) ErrorKind {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Kind
	}
	return KindInternal
}

// IsNotFound reports whether err signals an absent process, thread, or message.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func errNotFound(op string, pid ProcessID, tid ThreadID) error {
	return &Error{Op: op, Kind: KindNotFound, PID: pid, TID: tid}
}

func errKind(op string, kind ErrorKind, detail string) error {
	e := &Error{Op: op, Kind: kind}
	if detail != "" {
		e.Err = errors.New(detail)
	}
	return e
}
