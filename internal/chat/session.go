package chat

import "time"

// DefaultTitle is used when a session starts with an empty first message
// (attachment-only turns).
const DefaultTitle = "Percakapan Baru"

const titleMaxRunes = 40

// ChatSession is a persisted, named conversation.
type ChatSession struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	// Messages is the full ordered history; it is snapshot-replaced on
	// every update, never patched incrementally.
	Messages []Message `json:"messages"`
	// Timestamp is the last-modified time and drives display ordering.
	Timestamp time.Time `json:"timestamp"`
	// ModelID is the model selection active when the session was last touched.
	ModelID string `json:"modelId"`
}

// DeriveTitle computes a session title from the first message. The title is
// derived exactly once, at session creation, and never recomputed: the first
// message's text truncated to 40 runes with a trailing "..." if longer.
func DeriveTitle(messages []Message) string {
	if len(messages) == 0 {
		return DefaultTitle
	}
	text := messages[0].Text
	if text == "" {
		return DefaultTitle
	}
	runes := []rune(text)
	if len(runes) > titleMaxRunes {
		return string(runes[:titleMaxRunes]) + "..."
	}
	return text
}
