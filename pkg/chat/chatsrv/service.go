package chatsrv

import (
	"context"
	"strings"

	"github.com/verso-labs/companion/pkg/ai/llm"
	"github.com/verso-labs/companion/pkg/chat"
	"github.com/verso-labs/companion/pkg/companion"
	"github.com/verso-labs/companion/pkg/config"
	"github.com/verso-labs/companion/pkg/iam"
	"github.com/verso-labs/companion/pkg/kernel"
	"github.com/verso-labs/companion/pkg/logx"
	"github.com/verso-labs/companion/pkg/memory"
	"github.com/verso-labs/companion/pkg/ratelimit"
)

// Service runs the per-turn protocol: admission, history commit,
// seeding, retrieval, prompt assembly, completion, post-processing and
// the assistant-turn commit.
type Service struct {
	companions companion.Repository
	messages   companion.MessageRepository
	mem        *memory.Manager
	llm        *llm.Client
	limiter    ratelimit.Limiter
	cfg        *config.AIConfig
}

// NewService creates the chat turn service
func NewService(
	companions companion.Repository,
	messages companion.MessageRepository,
	mem *memory.Manager,
	llmClient *llm.Client,
	limiter ratelimit.Limiter,
	cfg *config.AIConfig,
) *Service {
	return &Service{
		companions: companions,
		messages:   messages,
		mem:        mem,
		llm:        llmClient,
		limiter:    limiter,
		cfg:        cfg,
	}
}

// turnSetup carries the state shared between the validated prefix of a
// turn and its completion phase.
type turnSetup struct {
	comp   *companion.Companion
	key    memory.ConversationKey
	prompt string
}

// prepare runs the front half of the turn protocol: validation,
// admission control, the pre-write existence check, seeding, the
// user-turn commit and context assembly. Everything up to the
// completion call happens here so both the blocking and the streaming
// paths share it.
func (s *Service) prepare(ctx context.Context, auth *kernel.AuthContext, companionID, prompt string) (*turnSetup, error) {
	if !auth.IsValid() {
		return nil, iam.ErrUnauthorized()
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, chat.ErrEmptyPrompt()
	}

	// Admission control comes before any history mutation
	identifier := "chat:" + companionID + "-" + auth.UserID.String()
	allowed, err := s.limiter.Allow(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ratelimit.ErrLimitExceeded()
	}

	comp, err := s.companions.FindByID(ctx, companionID)
	if err != nil {
		return nil, err
	}

	key := memory.ConversationKey{
		CompanionName: comp.ID,
		ModelName:     s.cfg.ChatModel,
		UserID:        auth.UserID,
	}

	// Checked once, before any writes in this request. Two concurrent
	// first turns can both see false and both seed; accepted race.
	existed, err := s.mem.HasHistory(ctx, key)
	if err != nil {
		return nil, err
	}
	if !existed {
		// Seed tokens sort before live-turn timestamps, so the example
		// dialogue lands ahead of this turn either way.
		if err := s.mem.SeedIfEmpty(ctx, comp.Seed, s.cfg.SeedDelimiter, key); err != nil {
			return nil, err
		}
	}

	// The user turn is committed before retrieval so the just-asked
	// question is part of the conversation-so-far this request reads.
	if err := s.mem.RecordTurn(ctx, "User: "+prompt, key); err != nil {
		return nil, err
	}
	s.mirror(ctx, comp.ID, auth.UserID, companion.RoleUser, prompt)

	recent, err := s.mem.RecentContext(ctx, key, s.cfg.HistoryWindow)
	if err != nil {
		return nil, err
	}

	retrieval := s.mem.RetrieveRelevant(ctx, recent, comp.DocumentSet())
	if retrieval.Degraded {
		logx.Warnf("retrieval degraded for companion %s, prompt assembled without relevant context", comp.ID)
	}

	return &turnSetup{
		comp:   comp,
		key:    key,
		prompt: chat.BuildPrompt(comp, retrieval.Text, recent),
	}, nil
}

func (s *Service) chatOptions(auth *kernel.AuthContext) []llm.Option {
	return []llm.Option{
		llm.WithModel(s.cfg.ChatModel),
		llm.WithMaxTokens(s.cfg.MaxTokens),
		llm.WithTemperature(float32(s.cfg.Temperature)),
		llm.WithUser(auth.UserID.String()),
	}
}

// Turn executes one blocking chat turn and returns the cleaned reply.
// A completion failure surfaces as an upstream error; the user turn
// recorded before it stays committed, visible in history as an
// unanswered message.
func (s *Service) Turn(ctx context.Context, auth *kernel.AuthContext, companionID, prompt string) (*chat.TurnResult, error) {
	setup, err := s.prepare(ctx, auth, companionID, prompt)
	if err != nil {
		return nil, err
	}

	resp, err := s.llm.Chat(ctx,
		[]llm.Message{llm.NewUserMessage(setup.prompt)},
		s.chatOptions(auth)...,
	)
	if err != nil {
		return nil, chat.ErrUpstream(err)
	}

	reply, err := s.commitReply(ctx, auth, setup, resp.Message.Content)
	if err != nil {
		return nil, err
	}

	return &chat.TurnResult{Reply: reply}, nil
}

// commitReply runs post-processing and the conditional assistant-turn
// commit. Effectively-empty replies are returned but never recorded.
func (s *Service) commitReply(ctx context.Context, auth *kernel.AuthContext, setup *turnSetup, raw string) (string, error) {
	reply := chat.CleanReply(raw)

	if chat.ShouldCommit(reply) {
		if err := s.mem.RecordTurn(ctx, reply, setup.key); err != nil {
			return "", err
		}
		s.mirror(ctx, setup.comp.ID, auth.UserID, companion.RoleSystem, reply)
	}

	return reply, nil
}

// mirror writes a committed turn to the durable per-user message store.
// The mirror is a rendering convenience, not part of the prompt
// pipeline, so failures are logged rather than surfaced.
func (s *Service) mirror(ctx context.Context, companionID string, userID kernel.UserID, role, content string) {
	err := s.messages.Create(ctx, companion.Message{
		CompanionID: companionID,
		UserID:      userID,
		Role:        role,
		Content:     content,
	})
	if err != nil {
		logx.WithFields(logx.Fields{
			"companion_id": companionID,
			"role":         role,
		}).Errorf("failed to mirror message: %v", err)
	}
}
