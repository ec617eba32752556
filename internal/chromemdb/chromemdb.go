// Package chromemdb adapts an in-memory chromem-go collection to the
// langchaingo vector store interface.
package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"

	"pdf-qa/internal/helper"
)

// IDKey is the metadata key whose value, when present, becomes the document ID.
const IDKey = "id"

var ErrEmptyCollection = errors.New("collection is empty")

// EmbedError marks a failure of the embedding provider, as opposed to the
// vector store itself.
type EmbedError struct {
	Err error
}

func (e *EmbedError) Error() string { return "failed to embed: " + e.Err.Error() }
func (e *EmbedError) Unwrap() error { return e.Err }

// VectorDBManager encapsulates the chromem-go database operations
type VectorDBManager struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embeddings.Embedder
}

var _ vectorstores.VectorStore = (*VectorDBManager)(nil)

// NewVectorDBManager creates an in-memory collection whose vectors come from embedder.
func NewVectorDBManager(collectionName string, embedder embeddings.Embedder) (*VectorDBManager, error) {
	db := chromem.NewDB()
	c, err := db.CreateCollection(collectionName, nil, embedder.EmbedQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	return &VectorDBManager{db: db, collection: c, embedder: embedder}, nil
}

// AddDocuments embeds every document in a single EmbedDocuments call and adds
// them all, or none if embedding fails.
func (m *VectorDBManager) AddDocuments(ctx context.Context, docs []schema.Document, _ ...vectorstores.Option) ([]string, error) {
	if len(docs) == 0 {
		return nil, errors.New("no documents to add")
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.PageContent
	}
	vectors, err := m.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, &EmbedError{Err: err}
	}
	if len(vectors) != len(docs) {
		return nil, &EmbedError{Err: fmt.Errorf("got %d embeddings for %d documents", len(vectors), len(docs))}
	}

	ids := make([]string, len(docs))
	chromemDocs := make([]chromem.Document, len(docs))
	for i, d := range docs {
		meta := make(map[string]string, len(d.Metadata))
		for k, v := range d.Metadata {
			meta[k] = fmt.Sprint(v)
		}
		id, ok := meta[IDKey]
		if !ok {
			if id, err = helper.NewID("doc"); err != nil {
				return nil, err
			}
		}
		ids[i] = id
		chromemDocs[i] = chromem.Document{
			ID:        id,
			Content:   d.PageContent,
			Metadata:  meta,
			Embedding: vectors[i],
		}
	}

	if err := m.collection.AddDocuments(ctx, chromemDocs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("failed to add documents: %w", err)
	}
	log.Debug().Int("count", len(ids)).Str("collection", m.collection.Name).Msg("Added documents")
	return ids, nil
}

// SimilaritySearch returns up to numDocuments documents ordered by cosine
// similarity to query. numDocuments is clamped to the collection size.
func (m *VectorDBManager) SimilaritySearch(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]schema.Document, error) {
	opts := vectorstores.Options{}
	for _, o := range options {
		o(&opts)
	}

	count := m.collection.Count()
	if count == 0 {
		return nil, ErrEmptyCollection
	}
	if numDocuments <= 0 || numDocuments > count {
		numDocuments = count
	}

	vector, err := m.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, &EmbedError{Err: err}
	}

	var where map[string]string
	if f, ok := opts.Filters.(map[string]string); ok {
		where = f
	}

	results, err := m.collection.QueryEmbedding(ctx, vector, numDocuments, where, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	docs := make([]schema.Document, 0, len(results))
	for _, r := range results {
		if opts.ScoreThreshold > 0 && r.Similarity < opts.ScoreThreshold {
			continue
		}
		meta := make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			meta[k] = v
		}
		docs = append(docs, schema.Document{PageContent: r.Content, Metadata: meta, Score: r.Similarity})
	}
	return docs, nil
}

func (m *VectorDBManager) Count() int {
	return m.collection.Count()
}

// DeleteCollection drops the collection and its vectors.
func (m *VectorDBManager) DeleteCollection() error {
	if err := m.db.DeleteCollection(m.collection.Name); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}
