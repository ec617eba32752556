// Package popup drives the question/answer screen: it detects the document,
// builds the index on request and streams answers into the view.
package popup

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"pdf-qa/internal/apperr"
	"pdf-qa/internal/llmservice"
	"pdf-qa/internal/messaging"
	"pdf-qa/internal/metrics"
	"pdf-qa/internal/models"
	"pdf-qa/internal/parser"
	"pdf-qa/internal/rag"
	"pdf-qa/internal/session"
)

type State int

const (
	StateIdle State = iota
	StatePdfDetected
	StateNoPdf
	StateExtracting
	StateReady
	StateAnswering
	StateError
)

func (s State) String() string {
	switch s {
	case StatePdfDetected:
		return "PdfDetected"
	case StateNoPdf:
		return "NoPdf"
	case StateExtracting:
		return "Extracting"
	case StateReady:
		return "Ready"
	case StateAnswering:
		return "Answering"
	case StateError:
		return "Error"
	default:
		return "Idle"
	}
}

// View is everything the controller can change on screen.
type View interface {
	SetPDFStatus(text string)
	SetExtractEnabled(enabled bool)
	SetAskEnabled(enabled bool)
	SetLoading(visible bool)
	ShowQuestionSection()
	// BeginAnswer clears the answer area, shows it and places the cursor.
	BeginAnswer()
	// AppendAnswer inserts text before the cursor.
	AppendAnswer(text string)
	// EndAnswer removes the cursor.
	EndAnswer()
	// SetAnswerText replaces the whole answer area, cursor included.
	SetAnswerText(text string)
}

// CredentialSource is satisfied by *settings.Settings.
type CredentialSource interface {
	GetAPIKey(ctx context.Context) (string, bool, error)
}

type Option func(*Controller)

// WithTopK sets how many pages are retrieved per question.
func WithTopK(k int) Option {
	return func(c *Controller) { c.topK = k }
}

type Controller struct {
	client   messaging.Client
	creds    CredentialSource
	provider llmservice.Provider
	session  *session.Session
	view     View
	topK     int

	mu      sync.Mutex
	state   State
	prior   State
	lastErr string
	isPDF   bool
	busy    bool
}

func NewController(client messaging.Client, creds CredentialSource, provider llmservice.Provider,
	sess *session.Session, view View, opts ...Option) *Controller {
	c := &Controller{
		client:   client,
		creds:    creds,
		provider: provider,
		session:  sess,
		view:     view,
		topK:     rag.DefaultTopK,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the state preceding the last failure and its message.
func (c *Controller) LastError() (State, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prior, c.lastErr
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) fail(prior State, err error) string {
	msg := models.StatusErrorPrefix + apperr.Message(err)
	c.mu.Lock()
	c.state = StateError
	c.prior = prior
	c.lastErr = msg
	c.mu.Unlock()
	return msg
}

// acquire marks the controller busy. It fails while another operation runs.
func (c *Controller) acquire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return false
	}
	c.busy = true
	return true
}

func (c *Controller) release() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

// Open asks the page whether it shows a PDF and updates the status line.
func (c *Controller) Open(ctx context.Context) {
	isPDF, err := c.client.IsPDF(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Page did not answer isPDF")
		isPDF = false
	}

	c.mu.Lock()
	c.isPDF = isPDF
	c.mu.Unlock()

	if isPDF {
		c.setState(StatePdfDetected)
		c.view.SetPDFStatus(models.StatusPDFDetected)
		c.view.SetExtractEnabled(true)
		return
	}
	c.setState(StateNoPdf)
	c.view.SetPDFStatus(models.StatusNoPDF)
	c.view.SetExtractEnabled(false)
}

// credential returns the stored key, or a CREDENTIAL_MISSING error when the
// configured providers need one and none is stored.
func (c *Controller) credential(ctx context.Context) (string, error) {
	key, ok, err := c.creds.GetAPIKey(ctx)
	if err != nil {
		return "", err
	}
	if !ok && c.requiresCredential() {
		return "", apperr.Newf(apperr.KindCredentialMissing, "", "%s", models.ErrMsgAPIKeyMissing)
	}
	return key, nil
}

func (c *Controller) requiresCredential() bool {
	if r, ok := c.provider.(interface{ RequiresCredential() bool }); ok {
		return r.RequiresCredential()
	}
	return true
}

// Extract captures the document, extracts its pages and replaces the session
// index. On failure the previous index is kept.
func (c *Controller) Extract(ctx context.Context) {
	c.mu.Lock()
	isPDF := c.isPDF
	c.mu.Unlock()
	if !isPDF {
		return
	}
	if !c.acquire() {
		return
	}
	defer c.release()
	prior := c.State()

	key, err := c.credential(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Extraction refused")
		c.view.SetPDFStatus(c.fail(prior, err))
		return
	}

	c.setState(StateExtracting)
	c.view.SetExtractEnabled(false)
	c.view.SetLoading(true)
	c.view.SetPDFStatus(models.StatusExtracting)
	defer func() {
		c.view.SetLoading(false)
		c.view.SetExtractEnabled(true)
	}()

	idx, err := c.buildIndex(ctx, key)
	metrics.Extractions.WithLabelValues(metrics.Outcome(err)).Inc()
	if err != nil {
		log.Error().Err(err).Str("session", c.session.ID()).Msg("Extraction failed")
		c.view.SetPDFStatus(c.fail(prior, err))
		return
	}

	c.session.Replace(idx)
	c.setState(StateReady)
	c.view.SetPDFStatus(models.StatusPDFProcessed)
	c.view.ShowQuestionSection()
}

func (c *Controller) buildIndex(ctx context.Context, key string) (*rag.Index, error) {
	encoded, err := c.client.CapturePDF(ctx)
	if err != nil {
		return nil, err
	}
	pages, err := parser.ExtractPages(encoded)
	if err != nil {
		return nil, err
	}
	metrics.ExtractedPages.Observe(float64(len(pages)))

	embedder, err := c.provider.Embedder(key)
	if err != nil {
		return nil, err
	}
	return rag.BuildIndex(ctx, pages, embedder)
}

// Ask streams the answer to question into the view. A blank question, or a
// question before any successful extraction, does nothing.
func (c *Controller) Ask(ctx context.Context, question string) {
	question = strings.TrimSpace(question)
	idx := c.session.Index()
	if question == "" || idx == nil {
		return
	}
	if !c.acquire() {
		return
	}
	defer c.release()
	prior := c.State()

	key, err := c.credential(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Question refused")
		c.view.SetAnswerText(c.fail(prior, err))
		return
	}

	c.setState(StateAnswering)
	c.view.SetAskEnabled(false)
	c.view.SetLoading(true)
	defer func() {
		c.view.SetLoading(false)
		c.view.SetAskEnabled(true)
	}()

	err = c.stream(ctx, idx, key, question)
	metrics.Answers.WithLabelValues(metrics.Outcome(err)).Inc()
	if err != nil {
		log.Error().Err(err).Str("session", c.session.ID()).Msg("Answer failed")
		c.view.SetAnswerText(c.fail(StateReady, err))
		return
	}
	c.setState(StateReady)
}

func (c *Controller) stream(ctx context.Context, idx *rag.Index, key, question string) error {
	model, err := c.provider.Model(key)
	if err != nil {
		return err
	}

	c.view.BeginAnswer()
	for tok, err := range idx.Answer(ctx, model, question, c.topK) {
		if err != nil {
			return err
		}
		c.view.AppendAnswer(tok)
		metrics.AnswerTokens.Inc()
	}
	c.view.EndAnswer()
	return nil
}

// Close ends the popup session and drops its index.
func (c *Controller) Close() {
	c.session.Invalidate()
	c.setState(StateIdle)
}
