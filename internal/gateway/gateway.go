// Package gateway is the boundary to the remote completion service. It
// assembles provider requests from conversation context, performs the network
// call through a concrete provider client, and normalizes the provider's
// heterogeneous response shape (text segments, inline generated media) into a
// uniform result.
package gateway

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/genzai-dev/genzai/internal/chat"
	"github.com/genzai-dev/genzai/internal/media"
)

// ApologyOffline is the degraded result text when the remote service cannot
// be reached. Failures never propagate as errors past Complete; they surface
// only as this result value.
const ApologyOffline = "Maaf, saya tidak dapat terhubung ke server saat ini. Pastikan koneksi internet Anda lancar."

// ApologyServer is the fixed text for the HTTP 500 body when a provider call
// fails inside the forwarding endpoint.
const ApologyServer = "Maaf, terjadi kesalahan di server saat menghubungi AI."

// Default MIME types for bare base64 payloads, per attachment field.
const (
	defaultImageMIME    = "image/jpeg"
	defaultVideoMIME    = "video/mp4"
	defaultDocumentMIME = "application/pdf"
)

// Request carries one completion call. History is the full conversation
// including the newest user message; Image/Video/Document are the newest
// message's inline references (data-URL or bare base64), at most one set.
type Request struct {
	Text     string
	ModelID  string
	History  []chat.Message
	Image    string
	Video    string
	Document string
}

// Result is the normalized outcome of a completion call.
type Result struct {
	Text string `json:"text"`
	// GeneratedImage is a data-URL inline reference, empty when the
	// provider returned no media.
	GeneratedImage string `json:"generatedImage,omitempty"`
}

// part is one typed content segment exchanged with a provider: either text
// or inline media (MIME + base64 payload).
type part struct {
	Text string
	MIME string
	Data string
}

func textPart(text string) part { return part{Text: text} }

func mediaPart(mime, data string) part { return part{MIME: mime, Data: data} }

func (p part) isMedia() bool { return p.MIME != "" }

// turn is one conversation entry in provider-neutral form.
type turn struct {
	Role  chat.Role
	Parts []part
}

// providerResponse is what a concrete provider client hands back: zero or
// more content segments plus an optional fallback text consulted only when
// the segments carry neither text nor media.
type providerResponse struct {
	Parts    []part
	Fallback string
}

// provider performs one completion call against a concrete backend.
type provider interface {
	name() string
	generate(ctx context.Context, modelID, system string, turns []turn) (providerResponse, error)
}

// Gateway normalizes completion calls over a single provider. It is
// stateless per call: the full context is re-sent every time, and no session
// affinity exists at this layer.
type Gateway struct {
	provider provider
}

// New wraps a provider client in a Gateway.
func New(p provider) *Gateway {
	return &Gateway{provider: p}
}

// Complete performs a completion call and never fails across the boundary:
// any transport or provider error is absorbed and converted into a result
// carrying a fixed fallback text and no generated media.
func (g *Gateway) Complete(ctx context.Context, req Request) (Result, error) {
	res, err := g.CompleteStrict(ctx, req)
	if err != nil {
		log.Error().Err(err).Str("provider", g.provider.name()).Str("model", req.ModelID).
			Msg("completion call failed")
		return Result{Text: ApologyOffline}, nil
	}
	return res, nil
}

// CompleteStrict performs a completion call and surfaces provider failures
// to the caller. Used by the forwarding endpoint, which must report them as
// HTTP errors.
func (g *Gateway) CompleteStrict(ctx context.Context, req Request) (Result, error) {
	system := instructionFor(req.ModelID)
	turns := buildTurns(req)

	resp, err := g.provider.generate(ctx, req.ModelID, system, turns)
	if err != nil {
		return Result{}, err
	}
	return normalize(resp), nil
}

// buildTurns reduces the conversation for transport: every message except the
// most recent is forwarded as role + text only (prior attachments are not
// re-transmitted); the most recent turn carries the request text with its
// attachment appended as additional typed parts.
func buildTurns(req Request) []turn {
	var turns []turn
	if len(req.History) > 0 {
		for _, msg := range req.History[:len(req.History)-1] {
			turns = append(turns, turn{Role: msg.Role, Parts: []part{textPart(msg.Text)}})
		}
	}

	current := turn{Role: chat.RoleUser, Parts: []part{textPart(req.Text)}}
	if req.Image != "" {
		current.Parts = append(current.Parts, mediaPart(media.ParseInline(req.Image, defaultImageMIME)))
	}
	if req.Video != "" {
		current.Parts = append(current.Parts, mediaPart(media.ParseInline(req.Video, defaultVideoMIME)))
	}
	if req.Document != "" {
		current.Parts = append(current.Parts, mediaPart(media.ParseInline(req.Document, defaultDocumentMIME)))
	}
	return append(turns, current)
}

// normalize folds provider segments into a uniform result: textual segments
// are concatenated in order, inline media is last-one-wins and re-encoded as
// a data URL. The fallback text is consulted only when the segments carried
// neither text nor media.
func normalize(resp providerResponse) Result {
	var text strings.Builder
	var generated string

	for _, p := range resp.Parts {
		if p.isMedia() {
			generated = "data:" + p.MIME + ";base64," + p.Data
			continue
		}
		text.WriteString(p.Text)
	}

	result := Result{Text: text.String(), GeneratedImage: generated}
	if result.Text == "" && result.GeneratedImage == "" {
		result.Text = resp.Fallback
	}
	return result
}
