// Package capture plays the role of the content script: it knows which
// document is displayed and can hand its bytes to the popup.
package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"

	"github.com/rs/zerolog/log"

	"pdf-qa/internal/apperr"
	"pdf-qa/internal/models"
)

const sniffLen = 512

// Page is the document displayed in the active tab.
type Page struct {
	URL         string
	ContentType string

	client   *http.Client
	maxBytes int64
}

type Option func(*Page)

// WithHTTPClient sets the client used to load and re-fetch the document.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Page) {
		if c != nil {
			p.client = c
		}
	}
}

// WithMaxBytes caps the captured payload size. Zero means no limit.
func WithMaxBytes(n int64) Option {
	return func(p *Page) {
		p.maxBytes = n
	}
}

// NewPage returns a page whose declared content type is already known.
func NewPage(rawURL, contentType string, opts ...Option) *Page {
	p := &Page{
		URL:         rawURL,
		ContentType: contentType,
		client:      http.DefaultClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Open loads rawURL the way a tab navigates to it and records the declared
// content type. Remote documents are probed with HEAD, falling back to GET;
// local files are sniffed.
func Open(ctx context.Context, rawURL string, opts ...Option) (*Page, error) {
	p := NewPage(rawURL, "", opts...)

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse url %q: %w", rawURL, err)
	}

	switch u.Scheme {
	case "file":
		ct, err := sniffFile(u.Path)
		if err != nil {
			return nil, err
		}
		p.ContentType = ct
	case "http", "https":
		ct, err := p.probe(ctx)
		if err != nil {
			return nil, err
		}
		p.ContentType = ct
	default:
		return nil, fmt.Errorf("unsupported url scheme: %q", u.Scheme)
	}

	log.Debug().Str("url", rawURL).Str("content_type", p.ContentType).Msg("Opened document")
	return p, nil
}

func sniffFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}

func (p *Page) probe(ctx context.Context) (string, error) {
	for _, method := range []string{http.MethodHead, http.MethodGet} {
		req, err := http.NewRequestWithContext(ctx, method, p.URL, nil)
		if err != nil {
			return "", err
		}
		resp, err := p.client.Do(req)
		if err != nil {
			return "", unwrapURLError(err)
		}
		ct := resp.Header.Get("Content-Type")
		if ct == "" && method == http.MethodGet {
			buf, _ := io.ReadAll(io.LimitReader(resp.Body, sniffLen))
			ct = http.DetectContentType(buf)
		}
		resp.Body.Close()

		if resp.StatusCode == http.StatusMethodNotAllowed || (ct == "" && method == http.MethodHead) {
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return ct, nil
	}
	return "", errors.New("could not determine content type")
}

// IsPDFDocument reports whether the declared content type is application/pdf.
func (p *Page) IsPDFDocument() bool {
	return isPDFType(p.ContentType)
}

func isPDFType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == models.PDFContentType
}

// CaptureDocumentBytes re-fetches the page's own URL and returns the payload
// as base64 text.
func (p *Page) CaptureDocumentBytes(ctx context.Context) (models.EncodedBytes, error) {
	if !p.IsPDFDocument() {
		return "", apperr.New(apperr.KindNotAPdf, "capture", errors.New(models.ErrMsgNotAPDF))
	}

	data, err := p.fetch(ctx)
	if err != nil {
		log.Error().Err(err).Str("url", p.URL).Msg("Error capturing PDF")
		return "", apperr.New(apperr.KindCapture, "capture", err)
	}

	if ct := http.DetectContentType(data); !isPDFType(ct) {
		return "", apperr.Newf(apperr.KindCapture, "capture", "response is not a PDF (%s)", ct)
	}

	log.Debug().Str("url", p.URL).Int("bytes", len(data)).Msg("Captured PDF")
	return models.EncodedBytes(base64.StdEncoding.EncodeToString(data)), nil
}

func (p *Page) fetch(ctx context.Context) ([]byte, error) {
	u, err := url.Parse(p.URL)
	if err != nil {
		return nil, err
	}

	var body io.ReadCloser
	if u.Scheme == "file" {
		f, err := os.Open(u.Path)
		if err != nil {
			return nil, err
		}
		body = f
	} else {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := p.client.Do(req)
		if err != nil {
			return nil, unwrapURLError(err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		body = resp.Body
	}
	defer body.Close()

	r := io.Reader(body)
	if p.maxBytes > 0 {
		r = io.LimitReader(body, p.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, unwrapURLError(err)
	}
	if p.maxBytes > 0 && int64(len(data)) > p.maxBytes {
		return nil, fmt.Errorf("document exceeds %d bytes", p.maxBytes)
	}
	return data, nil
}

// unwrapURLError drops the "Get <url>:" prefix so the user sees the
// transport failure itself.
func unwrapURLError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Err != nil {
		return uerr.Err
	}
	return err
}
