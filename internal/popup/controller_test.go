package popup

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"

	"pdf-qa/internal/capture"
	"pdf-qa/internal/messaging"
	"pdf-qa/internal/models"
	"pdf-qa/internal/session"
	"pdf-qa/internal/testutil"
)

// recordingView keeps the rendered state of every control plus an event log.
type recordingView struct {
	mu             sync.Mutex
	status         string
	extractEnabled bool
	askEnabled     bool
	loading        bool
	questionShown  bool
	answer         string
	cursor         bool
	events         []string
}

func (v *recordingView) log(e string) { v.events = append(v.events, e) }

func (v *recordingView) SetPDFStatus(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.status = text
	v.log("status:" + text)
}

func (v *recordingView) SetExtractEnabled(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.extractEnabled = enabled
	v.log("extract")
}

func (v *recordingView) SetAskEnabled(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.askEnabled = enabled
	v.log("ask")
}

func (v *recordingView) SetLoading(visible bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.loading = visible
	v.log("loading")
}

func (v *recordingView) ShowQuestionSection() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.questionShown = true
	v.log("question")
}

func (v *recordingView) BeginAnswer() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.answer = ""
	v.cursor = true
	v.log("begin")
}

func (v *recordingView) AppendAnswer(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.answer += text
	v.log("token")
}

func (v *recordingView) EndAnswer() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cursor = false
	v.log("end")
}

func (v *recordingView) SetAnswerText(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.answer = text
	v.cursor = false
	v.log("answer")
}

func (v *recordingView) eventCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.events)
}

type fakeClient struct {
	isPDF    bool
	encoded  models.EncodedBytes
	err      error
	captures int

	// when set, CapturePDF signals started and waits for release
	started chan struct{}
	release chan struct{}
}

func (c *fakeClient) IsPDF(context.Context) (bool, error) { return c.isPDF, nil }

func (c *fakeClient) CapturePDF(context.Context) (models.EncodedBytes, error) {
	c.captures++
	if c.release != nil {
		c.started <- struct{}{}
		<-c.release
	}
	return c.encoded, c.err
}

type fakeCreds struct{ key string }

func (c *fakeCreds) GetAPIKey(context.Context) (string, bool, error) {
	return c.key, c.key != "", nil
}

type fakeProvider struct {
	embedder    *testutil.KeywordEmbedder
	model       *testutil.StreamingModel
	embedderReq int
	modelReq    int
	lastKey     string
}

func (p *fakeProvider) Embedder(apiKey string) (embeddings.Embedder, error) {
	p.embedderReq++
	p.lastKey = apiKey
	return p.embedder.Embedder(), nil
}

func (p *fakeProvider) Model(apiKey string) (llms.Model, error) {
	p.modelReq++
	p.lastKey = apiKey
	return p.model, nil
}

var threePagePDF = testutil.BuildPDF(
	[]string{"Introduction to the topic"},
	[]string{"Page 2 holds the answer"},
	[]string{"Closing remarks"},
)

type harness struct {
	ctrl     *Controller
	view     *recordingView
	client   *fakeClient
	creds    *fakeCreds
	provider *fakeProvider
	session  *session.Session
}

func newHarness(t *testing.T, client messaging.Client) *harness {
	t.Helper()
	sess, err := session.New()
	require.NoError(t, err)

	h := &harness{
		view:  &recordingView{},
		creds: &fakeCreds{key: "sk-test"},
		provider: &fakeProvider{
			embedder: testutil.NewKeywordEmbedder("introduction", "page", "2", "closing", "remarks", "answer", "topic"),
			model:    &testutil.StreamingModel{Tokens: []string{"The", " answer", " is", " 42."}},
		},
		session: sess,
	}
	if fc, ok := client.(*fakeClient); ok {
		h.client = fc
	}
	h.ctrl = NewController(client, h.creds, h.provider, sess, h.view, WithTopK(1))
	return h
}

func pdfClient() *fakeClient {
	return &fakeClient{isPDF: true, encoded: testutil.Encode(threePagePDF)}
}

func TestOpenDetectsPDF(t *testing.T) {
	h := newHarness(t, pdfClient())
	h.ctrl.Open(context.Background())

	assert.Equal(t, models.StatusPDFDetected, h.view.status)
	assert.True(t, h.view.extractEnabled)
	assert.Equal(t, StatePdfDetected, h.ctrl.State())
}

func TestNonPDFPageIsNeverCaptured(t *testing.T) {
	h := newHarness(t, &fakeClient{isPDF: false})
	ctx := context.Background()

	h.ctrl.Open(ctx)
	assert.Equal(t, models.StatusNoPDF, h.view.status)
	assert.False(t, h.view.extractEnabled)
	assert.Equal(t, StateNoPdf, h.ctrl.State())

	h.ctrl.Extract(ctx)
	assert.Equal(t, 0, h.client.captures)
	assert.Equal(t, models.StatusNoPDF, h.view.status)
}

func TestExtractWithoutCredentialMakesNoCalls(t *testing.T) {
	h := newHarness(t, pdfClient())
	h.creds.key = ""
	ctx := context.Background()

	h.ctrl.Open(ctx)
	h.ctrl.Extract(ctx)

	assert.Equal(t, "Error: API key not set. Please set it in the extension options.", h.view.status)
	assert.Equal(t, 0, h.client.captures)
	assert.Equal(t, 0, h.provider.embedderReq)
	assert.Equal(t, 0, h.provider.embedder.CallCount())
	assert.Nil(t, h.session.Index())
	assert.Equal(t, StateError, h.ctrl.State())

	prior, msg := h.ctrl.LastError()
	assert.Equal(t, StatePdfDetected, prior)
	assert.Equal(t, h.view.status, msg)
}

func TestExtractThenAskAboutPageTwo(t *testing.T) {
	h := newHarness(t, pdfClient())
	ctx := context.Background()

	h.ctrl.Open(ctx)
	h.ctrl.Extract(ctx)

	assert.Equal(t, models.StatusPDFProcessed, h.view.status)
	assert.True(t, h.view.questionShown)
	assert.True(t, h.view.extractEnabled)
	assert.False(t, h.view.loading)
	require.NotNil(t, h.session.Index())
	assert.Equal(t, 3, h.session.Index().Len())
	assert.Equal(t, 1, h.provider.embedder.CallCount())
	assert.Equal(t, "sk-test", h.provider.lastKey)
	assert.Equal(t, StateReady, h.ctrl.State())

	h.ctrl.Ask(ctx, "  What is on page 2?  ")

	assert.Equal(t, "The answer is 42.", h.view.answer)
	assert.False(t, h.view.cursor)
	assert.True(t, h.view.askEnabled)
	assert.False(t, h.view.loading)
	assert.Equal(t, StateReady, h.ctrl.State())

	require.Len(t, h.provider.model.Prompts, 1)
	prompt := h.provider.model.Prompts[0]
	assert.Contains(t, prompt, "Page 2 holds the answer")
	assert.Contains(t, prompt, "What is on page 2?")
	assert.NotContains(t, prompt, "Introduction to the topic")
}

func TestAnswerTokensArriveBeforeCursorRemoval(t *testing.T) {
	h := newHarness(t, pdfClient())
	ctx := context.Background()
	h.ctrl.Open(ctx)
	h.ctrl.Extract(ctx)

	before := h.view.eventCount()
	h.ctrl.Ask(ctx, "What is on page 2?")

	h.view.mu.Lock()
	events := h.view.events[before:]
	h.view.mu.Unlock()
	assert.Equal(t, []string{"ask", "loading", "begin", "token", "token", "token", "token", "end", "loading", "ask"}, events)
}

func TestFailedCaptureKeepsPreviousIndex(t *testing.T) {
	h := newHarness(t, pdfClient())
	ctx := context.Background()
	h.ctrl.Open(ctx)
	h.ctrl.Extract(ctx)
	first := h.session.Index()
	require.NotNil(t, first)

	h.client.err = errors.New("network down")
	h.ctrl.Extract(ctx)

	assert.Equal(t, "Error: network down", h.view.status)
	assert.True(t, h.view.extractEnabled)
	assert.False(t, h.view.loading)
	assert.Same(t, first, h.session.Index())

	// The old index still answers.
	h.ctrl.Ask(ctx, "What is on page 2?")
	assert.Equal(t, "The answer is 42.", h.view.answer)
}

func TestNetworkDownThroughCapturedPage(t *testing.T) {
	var offline atomic.Bool
	transport := roundTrip(func(r *http.Request) (*http.Response, error) {
		if offline.Load() {
			return nil, errors.New("network down")
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"application/pdf"}},
			Body:       testutil.NopBody(threePagePDF),
			Request:    r,
		}, nil
	})
	page := capture.NewPage("https://example.com/report.pdf", models.PDFContentType,
		capture.WithHTTPClient(&http.Client{Transport: transport}))
	h := newHarness(t, messaging.NewLocalClient(messaging.NewHandler(page)))
	ctx := context.Background()

	h.ctrl.Open(ctx)
	h.ctrl.Extract(ctx)
	first := h.session.Index()
	require.NotNil(t, first)
	assert.Equal(t, models.StatusPDFProcessed, h.view.status)

	offline.Store(true)
	h.ctrl.Extract(ctx)

	assert.Equal(t, "Error: network down", h.view.status)
	assert.True(t, h.view.extractEnabled)
	assert.Same(t, first, h.session.Index())
}

func TestAskBeforeExtractionIsNoOp(t *testing.T) {
	h := newHarness(t, pdfClient())
	ctx := context.Background()
	h.ctrl.Open(ctx)

	before := h.view.eventCount()
	h.ctrl.Ask(ctx, "What is on page 2?")

	assert.Equal(t, before, h.view.eventCount())
	assert.Equal(t, 0, h.provider.modelReq)
	assert.Empty(t, h.provider.model.Prompts)
}

func TestBlankQuestionIsNoOp(t *testing.T) {
	h := newHarness(t, pdfClient())
	ctx := context.Background()
	h.ctrl.Open(ctx)
	h.ctrl.Extract(ctx)

	before := h.view.eventCount()
	h.ctrl.Ask(ctx, " \t\n ")

	assert.Equal(t, before, h.view.eventCount())
	assert.Equal(t, 0, h.provider.modelReq)
}

func TestAskWithoutCredential(t *testing.T) {
	h := newHarness(t, pdfClient())
	ctx := context.Background()
	h.ctrl.Open(ctx)
	h.ctrl.Extract(ctx)

	h.creds.key = ""
	h.ctrl.Ask(ctx, "What is on page 2?")

	assert.Equal(t, "Error: "+models.ErrMsgAPIKeyMissing, h.view.answer)
	assert.Equal(t, 0, h.provider.modelReq)
	assert.Empty(t, h.provider.model.Prompts)
	assert.NotNil(t, h.session.Index())
}

func TestAskFailureReplacesAnswer(t *testing.T) {
	h := newHarness(t, pdfClient())
	ctx := context.Background()
	h.ctrl.Open(ctx)
	h.ctrl.Extract(ctx)

	h.provider.model.Err = errors.New("model overloaded")
	h.ctrl.Ask(ctx, "What is on page 2?")

	assert.True(t, strings.HasPrefix(h.view.answer, "Error: "))
	assert.Contains(t, h.view.answer, "model overloaded")
	assert.False(t, h.view.cursor)
	assert.True(t, h.view.askEnabled)
	assert.False(t, h.view.loading)
	assert.NotNil(t, h.session.Index())

	prior, _ := h.ctrl.LastError()
	assert.Equal(t, StateReady, prior)
}

func TestExtractFailureOnInvalidDocument(t *testing.T) {
	client := &fakeClient{isPDF: true, encoded: "not base64!"}
	h := newHarness(t, client)
	ctx := context.Background()
	h.ctrl.Open(ctx)
	h.ctrl.Extract(ctx)

	assert.True(t, strings.HasPrefix(h.view.status, "Error: unsupported encoding"))
	assert.Nil(t, h.session.Index())
	assert.Equal(t, 0, h.provider.embedder.CallCount())
}

func TestCloseInvalidatesSession(t *testing.T) {
	h := newHarness(t, pdfClient())
	ctx := context.Background()
	h.ctrl.Open(ctx)
	h.ctrl.Extract(ctx)
	require.NotNil(t, h.session.Index())

	h.ctrl.Close()
	assert.Nil(t, h.session.Index())
	assert.Equal(t, StateIdle, h.ctrl.State())

	h.ctrl.Ask(ctx, "What is on page 2?")
	assert.Equal(t, 0, h.provider.modelReq)
}

type roundTrip func(*http.Request) (*http.Response, error)

func (f roundTrip) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestActionsAreIgnoredWhileExtracting(t *testing.T) {
	h := newHarness(t, pdfClient())
	ctx := context.Background()
	h.ctrl.Open(ctx)
	h.ctrl.Extract(ctx)
	require.NotNil(t, h.session.Index())

	h.client.started = make(chan struct{})
	h.client.release = make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.ctrl.Extract(ctx)
	}()
	<-h.client.started
	assert.Equal(t, StateExtracting, h.ctrl.State())

	before := h.view.eventCount()
	h.ctrl.Extract(ctx)
	h.ctrl.Ask(ctx, "What is on page 2?")
	assert.Equal(t, before, h.view.eventCount())
	assert.Equal(t, 2, h.client.captures)
	assert.Equal(t, 0, h.provider.modelReq)

	close(h.client.release)
	wg.Wait()
	assert.Equal(t, StateReady, h.ctrl.State())
	assert.Equal(t, 2, h.client.captures)

	// released, the controller accepts questions again
	h.ctrl.Ask(ctx, "What is on page 2?")
	assert.Equal(t, "The answer is 42.", h.view.answer)
}
