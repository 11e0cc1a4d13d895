package memory

import (
	"context"
	"strings"

	"github.com/verso-labs/companion/pkg/ai/embedding"
	"github.com/verso-labs/companion/pkg/logx"
)

// DefaultHistoryWindow is how many recent entries feed the prompt
const DefaultHistoryWindow = 30

// DefaultRetrievalTopK is how many chunks a retrieval asks for
const DefaultRetrievalTopK = 3

// Manager is a stateless façade over the history store, the vector
// index and the embedding client. It holds no state of its own, so a
// single injected instance is shared safely across requests.
type Manager struct {
	history    HistoryStore
	index      VectorIndex
	embedder   embedding.Embedder
	topK       int
	embedModel string
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithEmbeddingModel pins retrieval queries to a specific embedding
// model instead of the provider's default.
func WithEmbeddingModel(model string) ManagerOption {
	return func(m *Manager) {
		m.embedModel = model
	}
}

// NewManager creates a memory manager. topK <= 0 falls back to the
// default retrieval depth.
func NewManager(history HistoryStore, index VectorIndex, embedder embedding.Embedder, topK int, opts ...ManagerOption) *Manager {
	if topK <= 0 {
		topK = DefaultRetrievalTopK
	}
	m := &Manager{
		history:  history,
		index:    index,
		embedder: embedder,
		topK:     topK,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// HasHistory reports whether the conversation has ever been written
// to. The turn protocol checks this once, before any writes, to decide
// whether the companion's example dialogue must be seeded.
func (m *Manager) HasHistory(ctx context.Context, key ConversationKey) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, err
	}
	return m.history.Exists(ctx, key)
}

// RecordTurn appends one turn of text to the conversation log. The
// store is speaker-agnostic; callers attribute the speaker by how they
// format text (e.g. a "User: " prefix).
func (m *Manager) RecordTurn(ctx context.Context, text string, key ConversationKey) error {
	if err := key.Validate(); err != nil {
		return err
	}

	if _, err := m.history.Append(ctx, key, text); err != nil {
		return err
	}
	return nil
}

// SeedIfEmpty populates a brand-new conversation with the companion's
// example dialogue, one entry per delimiter-separated line, using
// sequential synthetic tokens. It is a no-op when the key already has
// history. The existence check and the writes are not atomic: two
// concurrent first turns can both seed, an accepted low-probability
// race.
func (m *Manager) SeedIfEmpty(ctx context.Context, seedText, delimiter string, key ConversationKey) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if seedText == "" {
		return nil
	}

	exists, err := m.history.Exists(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		logx.Debugf("conversation %s already has history, skipping seed", key.PartitionKey())
		return nil
	}

	lines := strings.Split(seedText, delimiter)
	for i, line := range lines {
		if err := m.history.AppendSeed(ctx, key, int64(i), line); err != nil {
			return err
		}
	}

	logx.Debugf("seeded conversation %s with %d lines", key.PartitionKey(), len(lines))
	return nil
}

// RecentContext reads up to limit most-recent entries, oldest first,
// joined into one newline-delimited block. This is the canonical
// "conversation so far", used both as the retrieval query and as the
// tail of the assembled prompt.
func (m *Manager) RecentContext(ctx context.Context, key ConversationKey, limit int) (string, error) {
	if err := key.Validate(); err != nil {
		return "", err
	}
	if limit <= 0 {
		limit = DefaultHistoryWindow
	}

	entries, err := m.history.ReadRecent(ctx, key, limit)
	if err != nil {
		return "", err
	}

	return strings.Join(entries, "\n"), nil
}

// RetrieveRelevant embeds the query, searches the companion's document
// set and joins the returned chunks in ranked order. Retrieval is
// best-effort context enrichment: any embedding or index failure
// degrades to an empty result instead of propagating.
func (m *Manager) RetrieveRelevant(ctx context.Context, query, documentSet string) Retrieval {
	if query == "" || documentSet == "" {
		return Retrieval{}
	}

	var embedOpts []embedding.Option
	if m.embedModel != "" {
		embedOpts = append(embedOpts, embedding.WithModel(m.embedModel))
	}

	emb, err := m.embedder.EmbedQuery(ctx, query, embedOpts...)
	if err != nil {
		logx.Warnf("embedding query failed, continuing without relevant context: %v", err)
		return Retrieval{Degraded: true}
	}

	chunks, err := m.index.Query(ctx, emb.Vector, documentSet, m.topK)
	if err != nil {
		logx.Warnf("vector search failed, continuing without relevant context: %v", err)
		return Retrieval{Degraded: true}
	}

	if len(chunks) == 0 {
		return Retrieval{}
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	return Retrieval{Text: strings.Join(texts, "\n")}
}
