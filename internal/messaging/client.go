package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"pdf-qa/internal/apperr"
	"pdf-qa/internal/models"
)

// MessagesPath is where the server mounts the handler.
const MessagesPath = "/v1/messages"

type sendFunc func(ctx context.Context, raw []byte) ([]byte, error)

// Conn implements Client over any transport that carries JSON messages.
type Conn struct {
	send sendFunc
}

// NewLocalClient talks to a handler in the same process. Messages still go
// through JSON so both transports see identical payloads.
func NewLocalClient(h *Handler) *Conn {
	return &Conn{send: h.ServeMessage}
}

// NewHTTPClient talks to a handler served at baseURL.
func NewHTTPClient(baseURL string, hc *http.Client) *Conn {
	if hc == nil {
		hc = http.DefaultClient
	}
	endpoint := strings.TrimRight(baseURL, "/") + MessagesPath

	return &Conn{send: func(ctx context.Context, raw []byte) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := hc.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			var e ErrorResponse
			if json.Unmarshal(body, &e) == nil && e.Error != "" {
				return nil, errors.New(e.Error)
			}
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return body, nil
	}}
}

func (c *Conn) roundTrip(ctx context.Context, action Action, out any) error {
	raw, err := json.Marshal(NewRequest(action))
	if err != nil {
		return err
	}
	resp, err := c.send(ctx, raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", action, err)
	}
	return nil
}

func (c *Conn) IsPDF(ctx context.Context) (bool, error) {
	var resp IsPDFResponse
	if err := c.roundTrip(ctx, ActionIsPDF, &resp); err != nil {
		return false, err
	}
	return resp.IsPDF, nil
}

// CapturePDF returns the encoded document, or an *apperr.Error carrying the
// kind and message reported by the page context.
func (c *Conn) CapturePDF(ctx context.Context) (models.EncodedBytes, error) {
	var resp CapturePDFResponse
	if err := c.roundTrip(ctx, ActionCapturePDF, &resp); err != nil {
		return "", apperr.New(apperr.KindCapture, "", err)
	}
	if !resp.Success {
		kind := apperr.ParseKind(resp.ErrorKind)
		if kind == apperr.KindUnknown {
			kind = apperr.KindCapture
		}
		return "", apperr.New(kind, "", errors.New(resp.Error))
	}
	return models.EncodedBytes(resp.PDFBase64), nil
}
