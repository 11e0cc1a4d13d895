package chatsrv

import (
	"context"
	"io"

	"github.com/verso-labs/companion/pkg/ai/llm"
	"github.com/verso-labs/companion/pkg/chat"
	"github.com/verso-labs/companion/pkg/kernel"
)

// TurnStream is the streaming turn's producer side. Chunks carries
// incremental completion text and closes when the model finishes;
// Outcome then delivers exactly one result with the cleaned, committed
// reply or the terminal error.
type TurnStream struct {
	Chunks  <-chan string
	Outcome <-chan chat.TurnOutcome
}

// TurnStream starts a streaming turn. The prefix of the protocol
// (validation through prompt assembly) runs synchronously so its
// failures return normally; after that the completion stream is relayed
// chunk by chunk while the full text is buffered, and post-processing
// plus the assistant-turn commit run once the stream ends. Consumers
// must drain Chunks even after they stop caring about the output, so
// the relay can reach the commit; cancelling ctx aborts the relay
// without committing.
func (s *Service) TurnStream(ctx context.Context, auth *kernel.AuthContext, companionID, prompt string) (*TurnStream, error) {
	setup, err := s.prepare(ctx, auth, companionID, prompt)
	if err != nil {
		return nil, err
	}

	stream, err := s.llm.ChatStream(ctx,
		[]llm.Message{llm.NewUserMessage(setup.prompt)},
		s.chatOptions(auth)...,
	)
	if err != nil {
		return nil, chat.ErrUpstream(err)
	}

	chunks := make(chan string)
	outcome := make(chan chat.TurnOutcome, 1)

	go s.relay(ctx, auth, setup, stream, chunks, outcome)

	return &TurnStream{
		Chunks:  chunks,
		Outcome: outcome,
	}, nil
}

func (s *Service) relay(
	ctx context.Context,
	auth *kernel.AuthContext,
	setup *turnSetup,
	stream llm.Stream,
	chunks chan<- string,
	outcome chan<- chat.TurnOutcome,
) {
	defer close(chunks)
	defer stream.Close()

	var full string
	for {
		msg, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			outcome <- chat.TurnOutcome{Err: chat.ErrUpstream(err)}
			return
		}

		// The stream hands back the accumulated message; relay only
		// the new suffix.
		if len(msg.Content) > len(full) {
			delta := msg.Content[len(full):]
			full = msg.Content

			select {
			case chunks <- delta:
			case <-ctx.Done():
				outcome <- chat.TurnOutcome{Err: ctx.Err()}
				return
			}
		}
	}

	reply, err := s.commitReply(ctx, auth, setup, full)
	if err != nil {
		outcome <- chat.TurnOutcome{Err: err}
		return
	}

	outcome <- chat.TurnOutcome{Reply: reply}
}
