package backend

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a dispatch failure independently of the transport that
// produced it.
type Kind string

const (
	// KindInvalidArgument is malformed caller input, caught before any I/O.
	KindInvalidArgument Kind = "invalid_argument"
	// KindParse is a hostlist grammar violation.
	KindParse Kind = "parse"
	// KindEncoding is a request serialization failure.
	KindEncoding Kind = "encoding"
	// KindTimeout is a per-request deadline exceeded at the transport bridge.
	KindTimeout Kind = "timeout"
	// KindTransport is a network-level failure before any status was received.
	KindTransport Kind = "transport"
	// KindClient is a 4xx response from the backend.
	KindClient Kind = "client"
	// KindServer is a 5xx response from the backend.
	KindServer Kind = "server"
	// KindDecode is a response deserialization failure on a 2xx status.
	KindDecode Kind = "decode"
)

// Error is the typed dispatch error surfaced by every backend operation. It
// carries enough context for diagnosis without the caller re-issuing the
// request: the logical operation, the per-host target when the failure was
// part of a fan-out, the HTTP status when one was received, and a snippet of
// the offending body.
type Error struct {
	Kind   Kind
	Op     string
	Host   string
	Status int
	Detail string
	Body   string
	Err    error
}

// Error implements error.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Host != "" {
		fmt.Fprintf(&b, " host=%s", e.Host)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " status=%d", e.Status)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Detail == "" && e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes the underlying cause for errors.Is/errors.As chains.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithOp returns a copy of the error annotated with the logical operation
// name, preserving the original when one is already set.
func (e *Error) WithOp(op string) *Error {
	if e == nil {
		return nil
	}
	clone := *e
	if clone.Op == "" {
		clone.Op = op
	}
	return &clone
}

// WithHost returns a copy of the error annotated with the fan-out target.
func (e *Error) WithHost(host string) *Error {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Host = host
	return &clone
}

// Errorf builds a dispatch error of the given kind from a format string.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap builds a dispatch error of the given kind around an underlying cause.
func Wrap(kind Kind, err error, detail string) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// KindOf returns the kind of a dispatch error, or the empty Kind when err is
// not a dispatch error.
func KindOf(err error) Kind {
	var dispatchErr *Error
	if errors.As(err, &dispatchErr) {
		return dispatchErr.Kind
	}
	return ""
}

// IsKind reports whether err is a dispatch error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
