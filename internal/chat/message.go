package chat

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// AttachmentKind classifies a user-supplied media attachment.
type AttachmentKind string

const (
	AttachmentImage    AttachmentKind = "image"
	AttachmentVideo    AttachmentKind = "video"
	AttachmentDocument AttachmentKind = "document"
)

// Attachment is a single inline media reference carried on a user message.
// The zero value means "no attachment"; Kind selects which of the three
// media categories the reference belongs to, so a message can never carry
// more than one of them.
type Attachment struct {
	Kind AttachmentKind `json:"kind"`
	// Data is a self-describing data-URL string: data:<mime>;base64,<payload>.
	Data string `json:"data"`
	// Name is the original filename, populated for documents only.
	Name string `json:"name,omitempty"`
}

// IsZero reports whether no attachment is present.
func (a Attachment) IsZero() bool {
	return a.Kind == ""
}

// Message is one turn in a conversation.
type Message struct {
	ID         string      `json:"id"`
	Role       Role        `json:"role"`
	Text       string      `json:"text"`
	Attachment *Attachment `json:"attachment,omitempty"`
	// GeneratedImage holds an inline data-URL reference returned by the
	// model. Only set on model-authored messages.
	GeneratedImage string    `json:"generatedImage,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Validate checks the message invariants.
func (m Message) Validate() error {
	switch m.Role {
	case RoleUser, RoleModel:
	default:
		return fmt.Errorf("invalid message role: %s", m.Role)
	}
	if m.Role == RoleModel && m.Attachment != nil {
		return fmt.Errorf("model messages cannot carry attachments")
	}
	if m.Role == RoleUser && m.GeneratedImage != "" {
		return fmt.Errorf("user messages cannot carry generated media")
	}
	if m.Text == "" && m.Attachment == nil && m.GeneratedImage == "" {
		return fmt.Errorf("message must have text or media")
	}
	return nil
}

var idCounter atomic.Int64

// NewMessageID returns a time-based identifier suitable as a rendering key.
// A process-local counter is appended so IDs minted within the same
// nanosecond stay distinct; uniqueness across restarts is best-effort only.
func NewMessageID() string {
	return strconv.FormatInt(time.Now().UnixNano(), 10) + "-" + strconv.FormatInt(idCounter.Add(1), 10)
}

// NewUserMessage builds a user-authored message. attachment may be the zero
// Attachment, in which case the message carries text only.
func NewUserMessage(text string, attachment Attachment) Message {
	msg := Message{
		ID:        NewMessageID(),
		Role:      RoleUser,
		Text:      text,
		Timestamp: time.Now(),
	}
	if !attachment.IsZero() {
		a := attachment
		msg.Attachment = &a
	}
	return msg
}

// NewModelMessage builds a model-authored message with optional generated media.
func NewModelMessage(text, generatedImage string) Message {
	return Message{
		ID:             NewMessageID(),
		Role:           RoleModel,
		Text:           text,
		GeneratedImage: generatedImage,
		Timestamp:      time.Now(),
	}
}
