// Package apperr classifies failures of the gateway layer so that the REST
// layer can decide how to surface them without inspecting SDK errors.
package apperr

import (
	"strings"

	"github.com/pkg/errors"
)

// Kind is the class of a failure. A Kind is itself an error so it can be
// used as the target of errors.Is.
type Kind string

const (
	// Configuration marks missing or malformed static configuration
	// (wallet profile, connection profile). Not user-correctable.
	Configuration Kind = "configuration"
	// Identity marks an unknown or unresolvable caller identity, including
	// wallet I/O failures while resolving it.
	Identity Kind = "identity"
	// Connection marks a failure building or establishing the network
	// connection, or resolving a channel on it. Callers may retry.
	Connection Kind = "connection"
)

func (k Kind) Error() string { return string(k) + " error" }

// Error carries the kind of a failure together with the operation that was
// attempted and the identity label it was attempted for.
type Error struct {
	Kind     Kind
	Op       string
	Identity string
	Err      error
}

// E builds an *Error around cause.
func E(kind Kind, op, identity string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Identity: identity, Err: cause}
}

// Errorf builds an *Error whose cause is a new formatted error.
func Errorf(kind Kind, op, identity, format string, args ...interface{}) *Error {
	return E(kind, op, identity, errors.Errorf(format, args...))
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Summary()
	}
	return e.Summary() + ": " + e.Err.Error()
}

// Summary describes the failure without its cause.
func (e *Error) Summary() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.Identity != "" {
		b.WriteString(" [identity ")
		b.WriteString(e.Identity)
		b.WriteString("]")
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the Kind of e.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// KindOf returns the kind of the outermost *Error in err's chain, or the
// empty Kind if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
