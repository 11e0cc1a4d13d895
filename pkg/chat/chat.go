package chat

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/verso-labs/companion/pkg/companion"
	"github.com/verso-labs/companion/pkg/errx"
)

// TurnRequest is the chat endpoint's body
type TurnRequest struct {
	Prompt string `json:"prompt"`
}

// TurnResponse is the JSON reply for a non-streaming turn
type TurnResponse struct {
	Reply string `json:"reply"`
}

// TurnResult is what the turn protocol hands back to the transport
type TurnResult struct {
	Reply string
}

// TurnOutcome is the terminal result of a streamed turn
type TurnOutcome struct {
	Reply string
	Err   error
}

// CleanReply normalizes raw model output into the single companion
// utterance for this turn. Commas are stripped (the model's delimiter
// convention against truncation artifacts) and only the first line is
// kept; further lines are fabricated follow-on dialogue and discarded.
func CleanReply(raw string) string {
	cleaned := strings.ReplaceAll(raw, ",", "")
	line, _, _ := strings.Cut(cleaned, "\n")
	return strings.TrimSpace(line)
}

// ShouldCommit reports whether a cleaned reply is substantial enough to
// record as an assistant turn. Replies of one character or less are
// still returned to the caller but never committed.
func ShouldCommit(reply string) bool {
	return utf8.RuneCountInString(reply) > 1
}

// BuildPrompt assembles the completion prompt: speaker-prefix guard,
// persona instructions, the relevant-context block, the recent-history
// block, and a trailing cue naming the companion as next speaker.
func BuildPrompt(c *companion.Companion, relevant, recent string) string {
	var b strings.Builder

	b.WriteString("ONLY generate plain sentences without prefix of who is speaking. DO NOT use ")
	b.WriteString(c.Name)
	b.WriteString(": prefix.\n\n")

	b.WriteString(c.Instructions)
	b.WriteString("\n\n")

	b.WriteString("Below are relevant details about ")
	b.WriteString(c.Name)
	b.WriteString("'s past and the conversation you are in.\n")
	b.WriteString(relevant)
	b.WriteString("\n\n")

	b.WriteString(recent)
	b.WriteString("\n")
	b.WriteString(c.Name)
	b.WriteString(":")

	return b.String()
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("CHAT")

var (
	CodeEmptyPrompt = ErrRegistry.Register("EMPTY_PROMPT", errx.TypeValidation, http.StatusBadRequest, "Prompt must not be empty")
	CodeUpstream    = ErrRegistry.Register("UPSTREAM", errx.TypeExternal, http.StatusBadGateway, "Completion service failed")
)

func ErrEmptyPrompt() *errx.Error {
	return ErrRegistry.New(CodeEmptyPrompt)
}

func ErrUpstream(err error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeUpstream, err)
}
