package chat

import (
	"strings"
	"testing"

	"github.com/verso-labs/companion/pkg/companion"
)

func TestCleanReply(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "strips commas and keeps first line",
			raw:  "Hello, world\nextra line",
			want: "Hello world",
		},
		{
			name: "single line untouched",
			raw:  "I grew up near the sea.",
			want: "I grew up near the sea.",
		},
		{
			name: "trims surrounding whitespace",
			raw:  "  a fine day  \nmore",
			want: "a fine day",
		},
		{
			name: "empty input",
			raw:  "",
			want: "",
		},
		{
			name: "only commas and newlines",
			raw:  ",,\n,,",
			want: "",
		},
		{
			name: "multiline fabricated dialogue discarded",
			raw:  "Nice to meet you, friend\nUser: hello again\nAlbert: hi",
			want: "Nice to meet you friend",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanReply(tt.raw); got != tt.want {
				t.Errorf("CleanReply(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestShouldCommit(t *testing.T) {
	tests := []struct {
		reply string
		want  bool
	}{
		{"", false},
		{".", false},
		{"a", false},
		{"ok", true},
		{"Nice to meet you friend", true},
	}

	for _, tt := range tests {
		if got := ShouldCommit(tt.reply); got != tt.want {
			t.Errorf("ShouldCommit(%q) = %v, want %v", tt.reply, got, tt.want)
		}
	}
}

func TestShouldCommitCountsRunesNotBytes(t *testing.T) {
	// A single multi-byte rune is still one character
	if ShouldCommit("é") {
		t.Error("single rune reply should not be committed")
	}
	if !ShouldCommit("éé") {
		t.Error("two rune reply should be committed")
	}
}

func TestBuildPrompt(t *testing.T) {
	comp := &companion.Companion{
		ID:           "albert",
		Name:         "Albert",
		Instructions: "You are Albert, a thoughtful physicist.",
	}

	relevant := "Albert spent 1905 in the patent office."
	recent := "User: What did you do in 1905?"

	prompt := BuildPrompt(comp, relevant, recent)

	if !strings.HasPrefix(prompt, "ONLY generate plain sentences without prefix of who is speaking. DO NOT use Albert: prefix.\n\n") {
		t.Errorf("prompt missing speaker-prefix guard, got prefix %q", prompt[:80])
	}
	if !strings.Contains(prompt, comp.Instructions) {
		t.Error("prompt missing persona instructions")
	}
	if !strings.Contains(prompt, "Below are relevant details about Albert's past and the conversation you are in.\n"+relevant) {
		t.Error("prompt missing relevant-context block")
	}
	if !strings.Contains(prompt, recent) {
		t.Error("prompt missing recent history block")
	}
	if !strings.HasSuffix(prompt, "\nAlbert:") {
		t.Errorf("prompt must end with the next-speaker cue, got suffix %q", prompt[len(prompt)-20:])
	}

	// Instructions come before the relevant block, which comes before
	// the recent block
	iIdx := strings.Index(prompt, comp.Instructions)
	rIdx := strings.Index(prompt, relevant)
	hIdx := strings.Index(prompt, recent)
	if !(iIdx < rIdx && rIdx < hIdx) {
		t.Errorf("prompt sections out of order: instructions=%d relevant=%d recent=%d", iIdx, rIdx, hIdx)
	}
}

func TestBuildPromptEmptyRelevantBlock(t *testing.T) {
	comp := &companion.Companion{
		ID:           "albert",
		Name:         "Albert",
		Instructions: "You are Albert.",
	}

	prompt := BuildPrompt(comp, "", "User: hi")

	// The section header stays even when retrieval found nothing
	if !strings.Contains(prompt, "Below are relevant details about Albert's past") {
		t.Error("relevant-context header should always be present")
	}
	if !strings.HasSuffix(prompt, "\nAlbert:") {
		t.Error("prompt must end with the next-speaker cue")
	}
}
