package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNotFound: the source object does not exist. Permanent.
	KindNotFound
	// KindTransientIO: the store or local disk failed. The caller may retry.
	KindTransientIO
	// KindConversion: the tool crashed or produced nothing. Permanent for this input and options.
	KindConversion
	// KindUpload: the derivative could not be published.
	KindUpload
	// KindInFlight: another instance is already generating this derivative.
	KindInFlight
	// KindInvalid: the request itself is malformed.
	KindInvalid
	// KindMissingDocument: the metadata record named by the request does not exist. Permanent.
	KindMissingDocument
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindTransientIO:
		return "transient_io"
	case KindConversion:
		return "conversion_failure"
	case KindUpload:
		return "upload_failure"
	case KindInFlight:
		return "in_flight"
	case KindInvalid:
		return "invalid_request"
	case KindMissingDocument:
		return "missing_document"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching against a *Error of the same kind.
var (
	ErrNotFound    = errors.New("source not found")
	ErrTransientIO = errors.New("transient I/O failure")
	ErrConversion  = errors.New("conversion failed")
	ErrUpload      = errors.New("upload failed")
	ErrInFlight    = errors.New("thumbnail job already in flight")
	ErrInvalid     = errors.New("invalid request")
	// ErrMissingDocument is distinct from ErrNotFound, which names the source object.
	ErrMissingDocument = errors.New("document record missing")
)

var kindSentinels = map[Kind]error{
	KindNotFound:        ErrNotFound,
	KindTransientIO:     ErrTransientIO,
	KindConversion:      ErrConversion,
	KindUpload:          ErrUpload,
	KindInFlight:        ErrInFlight,
	KindInvalid:         ErrInvalid,
	KindMissingDocument: ErrMissingDocument,
}

// Error is the single structured failure reported by the pipeline.
type Error struct {
	Kind Kind
	Op   string
	Key  string
	Err  error
	// Diagnostics holds tool output for conversion failures.
	Diagnostics string
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Key != "" {
		msg += " " + e.Key
	}
	if sentinel, ok := kindSentinels[e.Kind]; ok {
		msg += ": " + sentinel.Error()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return KindUnknown
}

// Retryable reports whether re-running the same job may succeed.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTransientIO, KindUpload, KindInFlight:
		return true
	}
	return false
}

func newError(kind Kind, op, key string, err error) *Error {
	return &Error{Kind: kind, Op: op, Key: key, Err: err}
}

func invalidf(format string, args ...any) *Error {
	return &Error{Kind: KindInvalid, Op: "validate", Err: fmt.Errorf(format, args...)}
}
