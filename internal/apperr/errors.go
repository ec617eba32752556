// Package apperr defines the failure kinds surfaced to the popup.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by the pipeline step that produced it.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotAPdf
	KindCapture
	KindExtract
	KindCredentialMissing
	KindEmbedding
	KindCompletion
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindNotAPdf:
		return "NOT_A_PDF"
	case KindCapture:
		return "CAPTURE"
	case KindExtract:
		return "EXTRACT"
	case KindCredentialMissing:
		return "CREDENTIAL_MISSING"
	case KindEmbedding:
		return "EMBEDDING"
	case KindCompletion:
		return "COMPLETION"
	case KindStorage:
		return "STORAGE"
	default:
		return "UNKNOWN"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) Kind {
	for k := KindNotAPdf; k <= KindStorage; k++ {
		if k.String() == s {
			return k
		}
	}
	return KindUnknown
}

// Error carries the kind, the operation that failed and the cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("[%s] %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Message is the human readable text shown to the user.
func (e *Error) Message() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Err.Error()
}

// New wraps err with a kind and operation name.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds an Error from a formatted message.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}


// Message returns the user facing text for any error.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message()
	}
	return err.Error()
}
