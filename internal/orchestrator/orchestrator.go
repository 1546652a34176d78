// Package orchestrator owns the live conversation state: the active message
// sequence, the bound session, the staged attachment, the selected model, and
// the single in-flight send. All mutations funnel through it.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/genzai-dev/genzai/internal/chat"
	"github.com/genzai-dev/genzai/internal/gateway"
	"github.com/genzai-dev/genzai/internal/media"
	"github.com/genzai-dev/genzai/internal/session"
)

var (
	// ErrBusy means a send was dropped because one is already in flight.
	// Dropped, not queued.
	ErrBusy = errors.New("a send is already in flight")
	// ErrEmptySend means there was nothing to send: whitespace-only text
	// and no staged attachment.
	ErrEmptySend = errors.New("nothing to send")
	// ErrUnknownSession marks a load of a session id the store does not hold.
	ErrUnknownSession = errors.New("unknown session")
	// ErrUnknownModel marks a model id absent from the catalog.
	ErrUnknownModel = errors.New("unknown model")
	// ErrUnknownShortcut marks an unrecognized feature shortcut.
	ErrUnknownShortcut = errors.New("unknown shortcut")
)

// Completer is the remote completion boundary the orchestrator sends through.
type Completer interface {
	Complete(ctx context.Context, req gateway.Request) (gateway.Result, error)
}

// Catalog answers whether a model id is currently selectable.
type Catalog interface {
	Has(id string) bool
	DefaultModelID() string
}

// Shortcut names for the feature cards.
const (
	ShortcutArt      = "art"
	ShortcutVideo    = "video-insight"
	ShortcutDocument = "doc-analysis"
)

// multimodalModelID is the model the video and document shortcuts switch to.
const multimodalModelID = "gemini-2.5-flash"

// Orchestrator serializes all conversation mutations. The sending flag is the
// re-entrancy guard: at most one Send is outstanding, and a second attempt
// while one is pending is dropped.
type Orchestrator struct {
	store     *session.Store
	completer Completer
	encoder   *media.Encoder
	catalog   Catalog

	sending atomic.Bool

	mu         sync.Mutex
	conv       chat.Conversation
	attachment chat.Attachment
	accept     string
	modelID    string
	// epoch increments whenever the active conversation is replaced. A
	// turn only writes back into the accumulator while the conversation
	// it started on is still the active one.
	epoch uint64
}

// New constructs the orchestrator. completer may be nil when no provider
// credential is configured; Send then records the user turn and degrades the
// reply like any other remote failure.
func New(store *session.Store, completer Completer, encoder *media.Encoder, catalog Catalog) *Orchestrator {
	return &Orchestrator{
		store:     store,
		completer: completer,
		encoder:   encoder,
		catalog:   catalog,
		accept:    media.AcceptDefault,
		modelID:   catalog.DefaultModelID(),
	}
}

// Snapshot is the externally visible conversation state.
type Snapshot struct {
	Messages   []chat.Message   `json:"messages"`
	SessionID  string           `json:"sessionId,omitempty"`
	ModelID    string           `json:"modelId"`
	Accept     string           `json:"accept"`
	Attachment *chat.Attachment `json:"attachment,omitempty"`
	Sending    bool             `json:"sending"`
}

// Send runs one full user turn: append the user message, persist, clear the
// staged input surface, call the remote gateway, and on success append and
// persist the model reply. A remote failure leaves the user message in place
// with no model reply and is not retried. The returned messages reflect the
// conversation after the turn.
func (o *Orchestrator) Send(ctx context.Context, text string) ([]chat.Message, error) {
	o.mu.Lock()
	if strings.TrimSpace(text) == "" && o.attachment.IsZero() {
		o.mu.Unlock()
		return nil, ErrEmptySend
	}
	if !o.sending.CompareAndSwap(false, true) {
		o.mu.Unlock()
		return nil, ErrBusy
	}
	defer o.sending.Store(false)

	userMsg := chat.NewUserMessage(text, o.attachment)
	updated := o.conv.Append(userMsg)
	modelID := o.modelID
	sessionID := o.conv.SessionID()
	epoch := o.epoch

	// The input surface clears before the remote call returns, so the next
	// turn can be staged regardless of latency.
	o.attachment = chat.Attachment{}
	o.accept = media.AcceptDefault
	o.mu.Unlock()

	id, err := o.store.Upsert(ctx, sessionID, updated, modelID)
	if err != nil {
		log.Warn().Err(err).Msg("failed to persist user turn")
		id = sessionID
	}
	if id != "" {
		o.mu.Lock()
		if o.epoch == epoch {
			o.conv.BindSession(id)
		}
		o.mu.Unlock()
	}

	req := gateway.Request{
		Text:    text,
		ModelID: modelID,
		History: updated,
	}
	if att := userMsg.Attachment; att != nil {
		switch att.Kind {
		case chat.AttachmentImage:
			req.Image = att.Data
		case chat.AttachmentVideo:
			req.Video = att.Data
		case chat.AttachmentDocument:
			req.Document = att.Data
		}
	}

	res, err := o.complete(ctx, req)
	if err != nil {
		// The user message stays recorded; nothing is rolled back and
		// the failure does not enter the transcript.
		log.Error().Err(err).Str("model", modelID).Msg("completion failed, turn left partial")
		return updated, nil
	}

	// The reply belongs to the turn captured above, not to whatever the
	// accumulator holds now: the user may have switched conversations
	// while the call was in flight.
	modelMsg := chat.NewModelMessage(res.Text, res.GeneratedImage)
	final := make([]chat.Message, 0, len(updated)+1)
	final = append(final, updated...)
	final = append(final, modelMsg)

	o.mu.Lock()
	if o.epoch == epoch {
		o.conv.Append(modelMsg)
	}
	o.mu.Unlock()

	if _, err := o.store.Upsert(ctx, id, final, modelID); err != nil {
		log.Warn().Err(err).Msg("failed to persist model turn")
	}
	return final, nil
}

func (o *Orchestrator) complete(ctx context.Context, req gateway.Request) (gateway.Result, error) {
	if o.completer == nil {
		return gateway.Result{}, errors.New("no completion provider configured")
	}
	return o.completer.Complete(ctx, req)
}

// StageAttachment classifies and stages one file, replacing whatever was
// staged before. An unclassifiable or oversized file leaves nothing staged
// and reports why. The accept filter reverts to the broad default either way.
func (o *Orchestrator) StageAttachment(name, contentType string, data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.attachment = chat.Attachment{}
	o.accept = media.AcceptDefault

	att, err := o.encoder.Encode(name, contentType, data)
	if err != nil {
		return err
	}
	o.attachment = att
	return nil
}

// RemoveAttachment drops the staged attachment, if any.
func (o *Orchestrator) RemoveAttachment() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attachment = chat.Attachment{}
}

// NewChat resets the active conversation to an unbound empty state. The
// selected model is kept.
func (o *Orchestrator) NewChat() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.epoch++
	o.conv.Reset()
	o.attachment = chat.Attachment{}
	o.accept = media.AcceptDefault
}

// LoadSession replaces the active conversation with a stored session's
// messages, verbatim. The session's model is restored only when the catalog
// still offers it.
func (o *Orchestrator) LoadSession(id string) error {
	s, ok := o.store.Get(id)
	if !ok {
		return ErrUnknownSession
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.epoch++
	o.conv.Load(s)
	o.attachment = chat.Attachment{}
	o.accept = media.AcceptDefault
	if s.ModelID != "" && o.catalog.Has(s.ModelID) {
		o.modelID = s.ModelID
	}
	return nil
}

// ClearAll wipes the store and the active conversation.
func (o *Orchestrator) ClearAll(ctx context.Context) error {
	if err := o.store.ClearAll(ctx); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.epoch++
	o.conv.Reset()
	o.attachment = chat.Attachment{}
	return nil
}

// SetModel switches the active model to a catalog entry.
func (o *Orchestrator) SetModel(id string) error {
	if !o.catalog.Has(id) {
		return ErrUnknownModel
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.modelID = id
	return nil
}

// Shortcut applies one of the feature cards: art switches to the
// image-generation model; video insight and document analysis switch to the
// multimodal model and narrow the accept filter for the next staged file.
func (o *Orchestrator) Shortcut(kind string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch kind {
	case ShortcutArt:
		o.modelID = gateway.ImageGenModelID
	case ShortcutVideo:
		if o.catalog.Has(multimodalModelID) {
			o.modelID = multimodalModelID
		}
		o.accept = media.AcceptVideo
	case ShortcutDocument:
		if o.catalog.Has(multimodalModelID) {
			o.modelID = multimodalModelID
		}
		o.accept = media.AcceptDocument
	default:
		return ErrUnknownShortcut
	}
	return nil
}

// Snapshot returns a copy of the externally visible state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	snap := Snapshot{
		Messages:  o.conv.Messages(),
		SessionID: o.conv.SessionID(),
		ModelID:   o.modelID,
		Accept:    o.accept,
		Sending:   o.sending.Load(),
	}
	if !o.attachment.IsZero() {
		a := o.attachment
		snap.Attachment = &a
	}
	return snap
}
