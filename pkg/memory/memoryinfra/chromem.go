package memoryinfra

import (
	"context"
	"fmt"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/verso-labs/companion/pkg/memory"
)

// ChromemVectorIndex implements the vector index over chromem-go, an
// embedded pure-Go vector database. Each document set gets its own
// collection, mirroring the per-companion filter the retrieval layer
// expects.
type ChromemVectorIndex struct {
	db *chromem.DB
	mu sync.Mutex
}

// NewChromemVectorIndex opens a persistent index rooted at path
func NewChromemVectorIndex(path string) (*ChromemVectorIndex, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector index at %s: %w", path, err)
	}

	return &ChromemVectorIndex{db: db}, nil
}

// NewChromemVectorIndexInMemory creates a non-persistent index,
// used in tests and throwaway environments.
func NewChromemVectorIndexInMemory() *ChromemVectorIndex {
	return &ChromemVectorIndex{db: chromem.NewDB()}
}

func (x *ChromemVectorIndex) collection(documentSet string) (*chromem.Collection, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	// Embeddings are supplied by the caller, so no embedding func and
	// the default cosine similarity.
	col, err := x.db.GetOrCreateCollection("docs_"+documentSet, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection for %s: %w", documentSet, err)
	}
	return col, nil
}

// Query returns the topK nearest chunks in the document set, ranked
// descending by similarity. An empty or missing collection yields no
// hits rather than an error.
func (x *ChromemVectorIndex) Query(ctx context.Context, vector []float32, documentSet string, topK int) ([]memory.Chunk, error) {
	col, err := x.collection(documentSet)
	if err != nil {
		return nil, err
	}

	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	// chromem rejects nResults larger than the collection
	if topK > count {
		topK = count
	}

	results, err := col.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector query failed for %s: %w", documentSet, err)
	}

	chunks := make([]memory.Chunk, len(results))
	for i, res := range results {
		chunks[i] = memory.Chunk{
			Text:  res.Content,
			Score: res.Similarity,
		}
	}

	return chunks, nil
}

// AddDocument stores one pre-embedded chunk in a document set. The chat
// pipeline never calls this; it exists for the ingestion tooling that
// populates companion background material.
func (x *ChromemVectorIndex) AddDocument(ctx context.Context, documentSet, id, text string, vector []float32) error {
	col, err := x.collection(documentSet)
	if err != nil {
		return err
	}

	err = col.AddDocument(ctx, chromem.Document{
		ID:        id,
		Content:   text,
		Embedding: vector,
	})
	if err != nil {
		return fmt.Errorf("failed to add document %s to %s: %w", id, documentSet, err)
	}

	return nil
}
