package memory

import "context"

// HistoryStore is the append-only, time-ordered per-conversation log.
// Entries are immutable once written; there are no edits or deletes.
type HistoryStore interface {
	// Append stores text under the conversation partition with a
	// wall-clock millisecond ordering token and returns the token.
	// Token collisions are last-write-wins at the store layer.
	Append(ctx context.Context, key ConversationKey, text string) (int64, error)

	// AppendSeed stores a seed line with a synthetic small-integer
	// token, keeping seeded dialogue ordered before any live turn.
	AppendSeed(ctx context.Context, key ConversationKey, seq int64, text string) error

	// ReadRecent returns up to limit most-recent entries in
	// chronological order (oldest first). Unknown keys yield an empty
	// slice, not an error.
	ReadRecent(ctx context.Context, key ConversationKey, limit int) ([]string, error)

	// Exists reports whether any entry has ever been written for key
	Exists(ctx context.Context, key ConversationKey) (bool, error)
}

// VectorIndex is the semantic search collaborator. The pipeline only
// queries it; index population is a separate ingestion concern.
type VectorIndex interface {
	// Query returns up to topK chunks from the document set nearest to
	// the vector, ranked descending by similarity.
	Query(ctx context.Context, vector []float32, documentSet string, topK int) ([]Chunk, error)
}
