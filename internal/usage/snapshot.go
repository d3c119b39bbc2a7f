package usage

import (
	"strings"

	"github.com/erg0nix/ctxmeter/internal/core"
)

// Snapshot is the text view of a conversation that token counting works on.
type Snapshot struct {
	Texts         []string
	AssistantTail string
	HasAssistant  bool
}

// NewSnapshot extracts each message's countable text in order and remembers the last assistant
// message.
func NewSnapshot(messages []core.Message) Snapshot {
	snapshot := Snapshot{Texts: make([]string, 0, len(messages))}

	for _, msg := range messages {
		text := msg.Content.PlainText()
		snapshot.Texts = append(snapshot.Texts, text)

		if msg.Role == core.RoleAssistant {
			snapshot.AssistantTail = text
			snapshot.HasAssistant = true
		}
	}

	return snapshot
}

// FullText is every message joined by newlines, the unit the total is counted on.
func (s Snapshot) FullText() string {
	return strings.Join(s.Texts, "\n")
}
