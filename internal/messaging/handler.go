package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"pdf-qa/internal/apperr"
	"pdf-qa/internal/metrics"
	"pdf-qa/internal/models"
)

// Handler answers popup requests on behalf of the displayed page.
type Handler struct {
	page Page
}

// Page is satisfied by *capture.Page.
type Page interface {
	IsPDFDocument() bool
	CaptureDocumentBytes(ctx context.Context) (models.EncodedBytes, error)
}

func NewHandler(page Page) *Handler {
	return &Handler{page: page}
}

// IsPDF answers ActionIsPDF.
func (h *Handler) IsPDF(_ context.Context) IsPDFResponse {
	return IsPDFResponse{IsPDF: h.page.IsPDFDocument()}
}

// CapturePDF answers ActionCapturePDF. Failures are reported in the response,
// never as an error.
func (h *Handler) CapturePDF(ctx context.Context) CapturePDFResponse {
	encoded, err := h.page.CaptureDocumentBytes(ctx)
	if err != nil {
		return CapturePDFResponse{
			Success:   false,
			Error:     apperr.Message(err),
			ErrorKind: apperr.KindOf(err).String(),
		}
	}
	return CapturePDFResponse{Success: true, PDFBase64: string(encoded)}
}

// Handle dispatches a typed request and returns the matching response value.
func (h *Handler) Handle(ctx context.Context, req Request) (any, error) {
	if err := req.Validate(); err != nil {
		metrics.Messages.WithLabelValues(string(req.Action), metrics.OutcomeError).Inc()
		return nil, err
	}

	var resp any
	outcome := metrics.OutcomeSuccess
	switch req.Action {
	case ActionIsPDF:
		resp = h.IsPDF(ctx)
	case ActionCapturePDF:
		r := h.CapturePDF(ctx)
		if !r.Success {
			outcome = metrics.OutcomeError
		}
		resp = r
	}
	metrics.Messages.WithLabelValues(string(req.Action), outcome).Inc()
	log.Debug().Str("action", string(req.Action)).Str("outcome", outcome).Msg("Handled message")
	return resp, nil
}

// ServeMessage is Handle over JSON, for transports that only carry text.
func (h *Handler) ServeMessage(ctx context.Context, raw []byte) ([]byte, error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}
	resp, err := h.Handle(ctx, req)
	if err != nil {
		return nil, err
	}
	return json.Marshal(resp)
}
