package testutil

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
)

// KeywordEmbedder maps a text to word counts over vocab, plus a constant bias
// dimension so no vector is ever zero. Calls counts CreateEmbedding calls.
type KeywordEmbedder struct {
	vocab map[string]int
	Err   error

	mu    sync.Mutex
	Calls int
}

func NewKeywordEmbedder(vocab ...string) *KeywordEmbedder {
	m := make(map[string]int, len(vocab))
	for i, w := range vocab {
		m[w] = i
	}
	return &KeywordEmbedder{vocab: m}
}

// Embedder wraps e in the langchaingo embedder used in production.
func (e *KeywordEmbedder) Embedder() embeddings.Embedder {
	impl, err := embeddings.NewEmbedder(embeddings.EmbedderClientFunc(e.create))
	if err != nil {
		panic(err)
	}
	return impl
}

func (e *KeywordEmbedder) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Calls
}

func (e *KeywordEmbedder) create(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.Calls++
	e.mu.Unlock()
	if e.Err != nil {
		return nil, e.Err
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, len(e.vocab)+1)
		v[len(e.vocab)] = 0.1
		words := strings.FieldsFunc(strings.ToLower(t), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, w := range words {
			if j, ok := e.vocab[w]; ok {
				v[j]++
			}
		}
		out[i] = v
	}
	return out, nil
}

// StreamingModel is an llms.Model that streams Tokens and then fails with Err,
// if set. Prompts records every prompt it received.
type StreamingModel struct {
	Tokens []string
	Err    error

	mu      sync.Mutex
	Prompts []string
}

var _ llms.Model = (*StreamingModel)(nil)

func (m *StreamingModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}

	var prompt strings.Builder
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if tc, ok := part.(llms.TextContent); ok {
				prompt.WriteString(tc.Text)
			}
		}
	}
	m.mu.Lock()
	m.Prompts = append(m.Prompts, prompt.String())
	m.mu.Unlock()

	var full strings.Builder
	for _, tok := range m.Tokens {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if opts.StreamingFunc != nil {
			if err := opts.StreamingFunc(ctx, []byte(tok)); err != nil {
				return nil, err
			}
		}
		full.WriteString(tok)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: full.String()}}}, nil
}

func (m *StreamingModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// PromptCount returns how many prompts the model received.
func (m *StreamingModel) PromptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}
