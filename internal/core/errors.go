package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a transport failure. The watcher's retry policy
// is driven entirely by this classification, never by inspecting
// error strings.
type ErrorKind string

const (
	// ErrorKindNetwork covers connection refused/reset, DNS, and TLS
	// handshake failures. Always retried with backoff.
	ErrorKindNetwork ErrorKind = "network"
	// ErrorKindUnauthorized is an HTTP 401. Retried with backoff but
	// reported to the observability sink as likely persistent.
	ErrorKindUnauthorized ErrorKind = "unauthorized"
	// ErrorKindForbidden is an HTTP 403, handled like Unauthorized.
	ErrorKindForbidden ErrorKind = "forbidden"
	// ErrorKindGone means the requested resource version is too old
	// to resume from (HTTP 410). It forces a full relist and is never
	// surfaced to subscribers as an error.
	ErrorKindGone ErrorKind = "gone"
	// ErrorKindDecode is a malformed response or event body.
	ErrorKindDecode ErrorKind = "decode"
	// ErrorKindNotFound means the collection endpoint does not exist.
	ErrorKindNotFound ErrorKind = "not_found"
	// ErrorKindOther is everything else.
	ErrorKindOther ErrorKind = "other"
)

// TransportError is the tagged error a Transport reports for list and
// watch failures. Fatal marks permanently invalid configuration (for
// example a collection endpoint that does not exist); the watcher
// stops instead of retrying fatal errors.
type TransportError struct {
	Kind  ErrorKind
	Fatal bool
	Cause error
}

func (e *TransportError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("transport error (%s)", e.Kind)
	}
	return fmt.Sprintf("transport error (%s): %v", e.Kind, e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// NewTransportError wraps cause with the given classification.
func NewTransportError(kind ErrorKind, cause error) *TransportError {
	return &TransportError{Kind: kind, Cause: cause}
}

// NewFatalTransportError wraps cause as a terminal condition.
func NewFatalTransportError(kind ErrorKind, cause error) *TransportError {
	return &TransportError{Kind: kind, Fatal: true, Cause: cause}
}

// KindOf extracts the classification from err, defaulting to Other
// for errors that did not originate in a Transport.
func KindOf(err error) ErrorKind {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ErrorKindOther
}

// IsGone reports whether err signals an expired resource version.
func IsGone(err error) bool {
	return KindOf(err) == ErrorKindGone
}

// IsFatal reports whether err should terminate the pipeline instead
// of being retried.
func IsFatal(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Fatal
}

// ErrCollectionNotFound indicates that a named collection is not part
// of the mirror set.
type ErrCollectionNotFound struct {
	Collection string
}

func (e *ErrCollectionNotFound) Error() string {
	return fmt.Sprintf("collection %q not mirrored", e.Collection)
}

// ErrObjectNotFound indicates that an identity has no entry in a
// store.
type ErrObjectNotFound struct {
	Identity ObjectIdentity
}

func (e *ErrObjectNotFound) Error() string {
	return fmt.Sprintf("object %s not in store", e.Identity)
}
