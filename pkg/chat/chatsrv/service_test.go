package chatsrv

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/verso-labs/companion/pkg/ai/embedding"
	"github.com/verso-labs/companion/pkg/ai/llm"
	"github.com/verso-labs/companion/pkg/companion"
	"github.com/verso-labs/companion/pkg/config"
	"github.com/verso-labs/companion/pkg/errx"
	"github.com/verso-labs/companion/pkg/kernel"
	"github.com/verso-labs/companion/pkg/memory"
)

// ============================================================================
// Fakes
// ============================================================================

type fakeCompanionRepo struct {
	comp *companion.Companion
}

func (f *fakeCompanionRepo) FindByID(ctx context.Context, id string) (*companion.Companion, error) {
	if f.comp == nil || f.comp.ID != id {
		return nil, companion.ErrCompanionNotFound()
	}
	return f.comp, nil
}

type fakeMessageRepo struct {
	created []companion.Message
	err     error
}

func (f *fakeMessageRepo) Create(ctx context.Context, msg companion.Message) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, msg)
	return nil
}

func (f *fakeMessageRepo) FindByCompanionAndUser(ctx context.Context, companionID string, userID kernel.UserID, limit int) ([]companion.Message, error) {
	return f.created, nil
}

type fakeHistoryStore struct {
	entries   []string
	seeded    int
	failWrite bool
}

func (f *fakeHistoryStore) Append(ctx context.Context, key memory.ConversationKey, text string) (int64, error) {
	if f.failWrite {
		return 0, memory.ErrStoreFailed(errors.New("store down"))
	}
	f.entries = append(f.entries, text)
	return int64(len(f.entries)), nil
}

func (f *fakeHistoryStore) AppendSeed(ctx context.Context, key memory.ConversationKey, seq int64, text string) error {
	f.entries = append(f.entries, text)
	f.seeded++
	return nil
}

func (f *fakeHistoryStore) ReadRecent(ctx context.Context, key memory.ConversationKey, limit int) ([]string, error) {
	all := f.entries
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (f *fakeHistoryStore) Exists(ctx context.Context, key memory.ConversationKey) (bool, error) {
	return len(f.entries) > 0, nil
}

type fakeVectorIndex struct {
	chunks []memory.Chunk
}

func (f *fakeVectorIndex) Query(ctx context.Context, vector []float32, documentSet string, topK int) ([]memory.Chunk, error) {
	return f.chunks, nil
}

type fakeEmbedder struct{}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, documents []string, opts ...embedding.Option) ([]embedding.Embedding, error) {
	out := make([]embedding.Embedding, len(documents))
	for i := range documents {
		out[i] = embedding.Embedding{Vector: []float32{0.5}}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string, opts ...embedding.Option) (embedding.Embedding, error) {
	return embedding.Embedding{Vector: []float32{0.5}}, nil
}

// fakeLLM records the prompt it was given and replies with a canned
// completion
type fakeLLM struct {
	reply      string
	err        error
	gotPrompt  string
	streamMsgs []string
}

func (f *fakeLLM) Chat(ctx context.Context, messages []llm.Message, opts ...llm.Option) (llm.Response, error) {
	if len(messages) > 0 {
		f.gotPrompt = messages[len(messages)-1].Content
	}
	if f.err != nil {
		return llm.Response{}, f.err
	}
	return llm.Response{Message: llm.NewAssistantMessage(f.reply)}, nil
}

func (f *fakeLLM) ChatStream(ctx context.Context, messages []llm.Message, opts ...llm.Option) (llm.Stream, error) {
	if len(messages) > 0 {
		f.gotPrompt = messages[len(messages)-1].Content
	}
	if f.err != nil {
		return nil, f.err
	}
	return &fakeStream{msgs: f.streamMsgs}, nil
}

// fakeStream hands back cumulative messages the way a completion stream
// accumulator does
type fakeStream struct {
	msgs   []string
	pos    int
	closed bool
}

func (s *fakeStream) Next() (llm.Message, error) {
	if s.pos >= len(s.msgs) {
		return llm.Message{}, io.EOF
	}
	msg := llm.NewAssistantMessage(s.msgs[s.pos])
	s.pos++
	return msg, nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type fakeLimiter struct {
	allowed bool
	calls   int
}

func (f *fakeLimiter) Allow(ctx context.Context, identifier string) (bool, error) {
	f.calls++
	return f.allowed, nil
}

// ============================================================================
// Fixture
// ============================================================================

type fixture struct {
	service  *Service
	history  *fakeHistoryStore
	messages *fakeMessageRepo
	llm      *fakeLLM
	limiter  *fakeLimiter
	comp     *companion.Companion
	auth     *kernel.AuthContext
}

func newFixture() *fixture {
	comp := &companion.Companion{
		ID:           "albert",
		Name:         "Albert",
		Instructions: "You are Albert, a thoughtful physicist.",
		Seed:         "Albert: Hello!\n\nUser: Hi Albert.",
	}

	history := &fakeHistoryStore{}
	messages := &fakeMessageRepo{}
	fake := &fakeLLM{reply: "Nice to meet you, friend"}
	limiter := &fakeLimiter{allowed: true}

	mem := memory.NewManager(history, &fakeVectorIndex{}, &fakeEmbedder{}, 3)

	cfg := &config.AIConfig{
		ChatModel:     "gpt-4o-mini",
		MaxTokens:     2048,
		Temperature:   0.75,
		HistoryWindow: 30,
		RetrievalTopK: 3,
		SeedDelimiter: "\n\n",
	}

	service := NewService(
		&fakeCompanionRepo{comp: comp},
		messages,
		mem,
		llm.NewClient(fake),
		limiter,
		cfg,
	)

	return &fixture{
		service:  service,
		history:  history,
		messages: messages,
		llm:      fake,
		limiter:  limiter,
		comp:     comp,
		auth: &kernel.AuthContext{
			UserID: "user-1",
			Email:  "ada@example.com",
			Name:   "Ada",
		},
	}
}

// ============================================================================
// Tests
// ============================================================================

func TestTurnHappyPath(t *testing.T) {
	f := newFixture()

	result, err := f.service.Turn(context.Background(), f.auth, "albert", "Hi")
	if err != nil {
		t.Fatal(err)
	}

	if result.Reply != "Nice to meet you friend" {
		t.Errorf("reply = %q, want %q", result.Reply, "Nice to meet you friend")
	}

	// First turn seeds the example dialogue, then user turn + reply land
	if f.history.seeded != 2 {
		t.Errorf("seeded %d lines, want 2", f.history.seeded)
	}
	if len(f.history.entries) != 4 {
		t.Fatalf("history has %d entries, want 4 (2 seed + user + reply)", len(f.history.entries))
	}
	if f.history.entries[2] != "User: Hi" {
		t.Errorf("user turn = %q, want %q", f.history.entries[2], "User: Hi")
	}
	if last := f.history.entries[len(f.history.entries)-1]; last != "Nice to meet you friend" {
		t.Errorf("committed reply = %q", last)
	}

	// Both turns mirrored to the durable message store
	if len(f.messages.created) != 2 {
		t.Fatalf("mirrored %d messages, want 2", len(f.messages.created))
	}
	if f.messages.created[0].Role != companion.RoleUser || f.messages.created[0].Content != "Hi" {
		t.Errorf("user mirror = %+v", f.messages.created[0])
	}
	if f.messages.created[1].Role != companion.RoleSystem {
		t.Errorf("reply mirror role = %q", f.messages.created[1].Role)
	}
}

func TestTurnPromptContainsHistoryAndCue(t *testing.T) {
	f := newFixture()

	if _, err := f.service.Turn(context.Background(), f.auth, "albert", "Hi"); err != nil {
		t.Fatal(err)
	}

	// The just-recorded user turn is part of the prompt's conversation
	if !strings.Contains(f.llm.gotPrompt, "User: Hi") {
		t.Error("prompt must include the just-committed user turn")
	}
	if !strings.HasSuffix(f.llm.gotPrompt, "\nAlbert:") {
		t.Errorf("prompt must end with next-speaker cue, got suffix %q", f.llm.gotPrompt[len(f.llm.gotPrompt)-20:])
	}
}

func TestTurnSeedsOnlyFirstConversation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.service.Turn(ctx, f.auth, "albert", "Hi"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.service.Turn(ctx, f.auth, "albert", "Tell me more"); err != nil {
		t.Fatal(err)
	}

	if f.history.seeded != 2 {
		t.Errorf("seed ran again on second turn: %d seeded lines", f.history.seeded)
	}
}

func TestTurnRejectsInvalidAuth(t *testing.T) {
	f := newFixture()

	_, err := f.service.Turn(context.Background(), &kernel.AuthContext{UserID: "u"}, "albert", "Hi")
	if !errx.IsType(err, errx.TypeAuthentication) {
		t.Fatalf("expected authentication error, got %v", err)
	}
	if len(f.history.entries) != 0 {
		t.Error("rejected request must not touch history")
	}
}

func TestTurnRejectsEmptyPrompt(t *testing.T) {
	f := newFixture()

	_, err := f.service.Turn(context.Background(), f.auth, "albert", "   ")
	if !errx.IsType(err, errx.TypeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(f.history.entries) != 0 {
		t.Error("rejected request must not touch history")
	}
}

func TestTurnRateLimitedLeavesNoTrace(t *testing.T) {
	f := newFixture()
	f.limiter.allowed = false

	_, err := f.service.Turn(context.Background(), f.auth, "albert", "Hi")
	if !errx.IsType(err, errx.TypeRateLimit) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if len(f.history.entries) != 0 {
		t.Error("rate-limited request must not write history")
	}
	if len(f.messages.created) != 0 {
		t.Error("rate-limited request must not mirror messages")
	}
}

func TestTurnUnknownCompanion(t *testing.T) {
	f := newFixture()

	_, err := f.service.Turn(context.Background(), f.auth, "nobody", "Hi")
	if !errx.IsType(err, errx.TypeNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestTurnUpstreamFailureRetainsUserTurn(t *testing.T) {
	f := newFixture()
	f.llm.err = errors.New("upstream 500")

	_, err := f.service.Turn(context.Background(), f.auth, "albert", "Hi")
	if !errx.IsType(err, errx.TypeExternal) {
		t.Fatalf("expected external error, got %v", err)
	}

	// The user turn was committed before the completion call and stays
	found := false
	for _, e := range f.history.entries {
		if e == "User: Hi" {
			found = true
		}
	}
	if !found {
		t.Error("user turn must survive a completion failure")
	}
}

func TestTurnShortReplyReturnedNotCommitted(t *testing.T) {
	f := newFixture()
	f.llm.reply = "."

	result, err := f.service.Turn(context.Background(), f.auth, "albert", "Hi")
	if err != nil {
		t.Fatal(err)
	}
	if result.Reply != "." {
		t.Errorf("reply = %q, want %q", result.Reply, ".")
	}

	for _, e := range f.history.entries {
		if e == "." {
			t.Error("effectively-empty reply must not be committed to history")
		}
	}
	// Only the user turn is mirrored
	if len(f.messages.created) != 1 {
		t.Errorf("mirrored %d messages, want 1", len(f.messages.created))
	}
}

func TestTurnMirrorFailureNotSurfaced(t *testing.T) {
	f := newFixture()
	f.messages.err = errors.New("sink down")

	result, err := f.service.Turn(context.Background(), f.auth, "albert", "Hi")
	if err != nil {
		t.Fatalf("mirror failure must not fail the turn: %v", err)
	}
	if result.Reply == "" {
		t.Error("reply must still be produced")
	}
}

func TestTurnRelevantChunksReachPrompt(t *testing.T) {
	comp := &companion.Companion{
		ID:           "albert",
		Name:         "Albert",
		Instructions: "You are Albert.",
	}
	history := &fakeHistoryStore{}
	fake := &fakeLLM{reply: "In the patent office."}
	index := &fakeVectorIndex{chunks: []memory.Chunk{
		{Text: "Albert worked at the patent office in 1905.", Score: 0.92},
	}}
	mem := memory.NewManager(history, index, &fakeEmbedder{}, 3)

	service := NewService(
		&fakeCompanionRepo{comp: comp},
		&fakeMessageRepo{},
		mem,
		llm.NewClient(fake),
		&fakeLimiter{allowed: true},
		&config.AIConfig{ChatModel: "gpt-4o-mini", HistoryWindow: 30, SeedDelimiter: "\n\n"},
	)

	auth := &kernel.AuthContext{UserID: "user-1", Name: "Ada"}
	if _, err := service.Turn(context.Background(), auth, "albert", "What did you do in 1905?"); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(fake.gotPrompt, "Albert worked at the patent office in 1905.") {
		t.Error("retrieved chunk must appear in the assembled prompt")
	}
}

func TestTurnStreamDeliversChunksAndCommits(t *testing.T) {
	f := newFixture()
	// Cumulative accumulator snapshots, as a streaming client sees them
	f.llm.streamMsgs = []string{"Nice", "Nice to meet", "Nice to meet you, friend"}

	ts, err := f.service.TurnStream(context.Background(), f.auth, "albert", "Hi")
	if err != nil {
		t.Fatal(err)
	}

	var received strings.Builder
	for chunk := range ts.Chunks {
		received.WriteString(chunk)
	}
	outcome := <-ts.Outcome

	if outcome.Err != nil {
		t.Fatal(outcome.Err)
	}
	if received.String() != "Nice to meet you, friend" {
		t.Errorf("relayed text = %q", received.String())
	}
	if outcome.Reply != "Nice to meet you friend" {
		t.Errorf("final reply = %q", outcome.Reply)
	}

	// The cleaned reply was committed after the stream ended
	if last := f.history.entries[len(f.history.entries)-1]; last != "Nice to meet you friend" {
		t.Errorf("committed reply = %q", last)
	}
}

func TestTurnStreamPrefixFailureIsSynchronous(t *testing.T) {
	f := newFixture()
	f.limiter.allowed = false

	_, err := f.service.TurnStream(context.Background(), f.auth, "albert", "Hi")
	if !errx.IsType(err, errx.TypeRateLimit) {
		t.Fatalf("expected rate limit error before any streaming, got %v", err)
	}
}
