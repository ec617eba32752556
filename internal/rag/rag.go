// Package rag builds the per-document retrieval index and answers questions
// over it with a retrieval QA chain.
package rag

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"

	"pdf-qa/internal/apperr"
	"pdf-qa/internal/chromemdb"
	"pdf-qa/internal/models"
)

// DefaultTopK is the number of pages handed to the model per question.
const DefaultTopK = 4

const collectionName = "pages"

// Index holds one vector per page of a single document.
type Index struct {
	store *chromemdb.VectorDBManager
	pages int
}

// BuildIndex embeds every page in one call. Either all pages are indexed or
// an EMBEDDING error is returned and no index exists.
func BuildIndex(ctx context.Context, pages []models.PageDocument, embedder embeddings.Embedder) (*Index, error) {
	if len(pages) == 0 {
		return nil, apperr.Newf(apperr.KindEmbedding, "index", "no pages to index")
	}

	store, err := chromemdb.NewVectorDBManager(collectionName, embedder)
	if err != nil {
		return nil, apperr.New(apperr.KindEmbedding, "index", err)
	}

	docs := make([]schema.Document, len(pages))
	for i, p := range pages {
		docs[i] = schema.Document{
			PageContent: p.Text,
			Metadata: map[string]any{
				models.PageMetadataKey: p.PageIndex,
				chromemdb.IDKey:        fmt.Sprintf(models.PageIDFormat, p.PageIndex),
			},
		}
	}

	if _, err := store.AddDocuments(ctx, docs); err != nil {
		return nil, apperr.New(apperr.KindEmbedding, "index", unwrapEmbed(err))
	}
	log.Info().Int("pages", len(pages)).Msg("Built retrieval index")
	return &Index{store: store, pages: len(pages)}, nil
}

// Len is the number of indexed pages.
func (idx *Index) Len() int { return idx.pages }

// RetrieveRelevant returns the k pages most similar to question, best first.
// k is clamped to the number of pages.
func (idx *Index) RetrieveRelevant(ctx context.Context, question string, k int) ([]models.PageDocument, error) {
	docs, err := idx.store.SimilaritySearch(ctx, question, clampK(k, idx.pages))
	if err != nil {
		return nil, apperr.New(apperr.KindEmbedding, "retrieve", unwrapEmbed(err))
	}

	pages := make([]models.PageDocument, 0, len(docs))
	for _, d := range docs {
		pages = append(pages, toPage(d))
	}
	return pages, nil
}

// Answer streams the model's answer to question, grounded on the k most
// relevant pages. Breaking out of the loop cancels the request. A failure is
// yielded once, as a COMPLETION error, after any tokens already produced.
func (idx *Index) Answer(ctx context.Context, model llms.Model, question string, k int) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		chain := chains.NewRetrievalQAFromLLM(model, vectorstores.ToRetriever(idx.store, clampK(k, idx.pages)))

		tokens := make(chan string)
		done := make(chan error, 1)
		go func() {
			defer close(tokens)
			_, err := chains.Call(ctx, chain, map[string]any{"query": question},
				chains.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
					if len(chunk) == 0 {
						return nil
					}
					select {
					case tokens <- string(chunk):
						return nil
					case <-ctx.Done():
						return ctx.Err()
					}
				}),
			)
			done <- err
		}()

		for tok := range tokens {
			if !yield(tok, nil) {
				cancel()
				for range tokens {
				}
				return
			}
		}
		if err := <-done; err != nil {
			yield("", apperr.New(apperr.KindCompletion, "answer", unwrapEmbed(err)))
		}
	}
}

// Close releases the index vectors.
func (idx *Index) Close() error {
	return idx.store.DeleteCollection()
}

func clampK(k, n int) int {
	if k <= 0 {
		k = DefaultTopK
	}
	if k > n {
		k = n
	}
	return k
}

func toPage(d schema.Document) models.PageDocument {
	p := models.PageDocument{Text: d.PageContent}
	switch v := d.Metadata[models.PageMetadataKey].(type) {
	case int:
		p.PageIndex = v
	case string:
		p.PageIndex, _ = strconv.Atoi(v)
	}
	return p
}

func unwrapEmbed(err error) error {
	var e *chromemdb.EmbedError
	if errors.As(err, &e) {
		return e.Err
	}
	return err
}
