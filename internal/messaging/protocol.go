// Package messaging is the request/response boundary between the popup and
// the page context. Every request names a protocol version and an action;
// each action has its own response type.
package messaging

import (
	"context"
	"errors"
	"fmt"

	"pdf-qa/internal/models"
)

// Version is the protocol revision spoken by this build.
const Version = "v1"

type Action string

const (
	ActionIsPDF      Action = "isPDF"
	ActionCapturePDF Action = "capturePDF"
)

var (
	ErrUnknownAction      = errors.New("unknown action")
	ErrUnsupportedVersion = errors.New("unsupported protocol version")
)

// Request is the envelope sent by the popup.
type Request struct {
	Version string `json:"version"`
	Action  Action `json:"action"`
}

// IsPDFResponse answers ActionIsPDF.
type IsPDFResponse struct {
	IsPDF bool `json:"isPDF"`
}

// CapturePDFResponse answers ActionCapturePDF. On failure Error holds the
// user facing message and ErrorKind the failure class.
type CapturePDFResponse struct {
	Success   bool   `json:"success"`
	PDFBase64 string `json:"pdfBase64,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"errorKind,omitempty"`
}

// ErrorResponse is returned for requests that cannot be dispatched.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NewRequest builds a request for the current protocol version.
func NewRequest(action Action) Request {
	return Request{Version: Version, Action: action}
}

// Validate checks the version and action of a request.
func (r Request) Validate() error {
	if r.Version != Version {
		return fmt.Errorf("%w: %q", ErrUnsupportedVersion, r.Version)
	}
	switch r.Action {
	case ActionIsPDF, ActionCapturePDF:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, r.Action)
	}
}

// Client is the popup's view of the page context.
type Client interface {
	IsPDF(ctx context.Context) (bool, error)
	CapturePDF(ctx context.Context) (models.EncodedBytes, error)
}
