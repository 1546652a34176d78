package chat

// Conversation accumulates the in-memory message sequence of the currently
// displayed conversation, independent of persistence. It mirrors the bound
// session's messages at the last point of reconciliation; persistence happens
// only through the owning session.
//
// Conversation is not safe for concurrent use; callers serialize access.
type Conversation struct {
	messages  []Message
	sessionID string
}

// Reset empties the active messages and detaches from any session.
func (c *Conversation) Reset() {
	c.messages = nil
	c.sessionID = ""
}

// Append returns a new sequence with msg at the end. The prior backing slice
// is never mutated in place: callers rely on referential replacement to
// detect updates.
func (c *Conversation) Append(msg Message) []Message {
	updated := make([]Message, 0, len(c.messages)+1)
	updated = append(updated, c.messages...)
	updated = append(updated, msg)
	c.messages = updated
	return updated
}

// Load replaces the active messages with the session's messages verbatim and
// binds the session identifier.
func (c *Conversation) Load(session ChatSession) {
	c.messages = session.Messages
	c.sessionID = session.ID
}

// BindSession attaches the conversation to a session identifier without
// touching the messages. Used after the store allocates an id for a new
// conversation.
func (c *Conversation) BindSession(id string) {
	c.sessionID = id
}

// SessionID returns the bound session identifier, or "" for a new
// conversation.
func (c *Conversation) SessionID() string {
	return c.sessionID
}

// Messages returns a copy of the active message sequence.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of active messages.
func (c *Conversation) Len() int {
	return len(c.messages)
}
