// Package media converts user-selected files into self-describing inline
// references (MIME type + base64 payload) suitable for transport, and parses
// such references back apart at the provider boundary.
package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	units "github.com/docker/go-units"

	"github.com/genzai-dev/genzai/internal/chat"
)

// Accept filters mirror the file-picker constraints of the client. The broad
// default is restored after every file selection; the narrow ones are set by
// the feature shortcuts and last for a single selection only.
const (
	AcceptDefault  = "image/*,video/*,application/pdf,text/*,.pdf,.txt,.csv"
	AcceptVideo    = "video/*"
	AcceptDocument = ".pdf,.txt,.csv,application/pdf,text/plain"
)

var (
	// ErrUnsupportedType marks a file whose declared content type matches
	// none of the attachment categories. Such files are dropped without a
	// user-facing transcript error.
	ErrUnsupportedType = errors.New("unsupported content type")
	// ErrTooLarge marks a file exceeding the configured size cap.
	ErrTooLarge = errors.New("attachment too large")
)

// Encoder turns raw file bytes into chat attachments.
type Encoder struct {
	maxBytes int64
}

// NewEncoder creates an encoder with a human-readable size cap ("12MiB").
// An empty limit disables the cap.
func NewEncoder(maxSize string) (*Encoder, error) {
	e := &Encoder{}
	if maxSize != "" {
		n, err := units.RAMInBytes(maxSize)
		if err != nil {
			return nil, fmt.Errorf("invalid attachment size limit %q: %w", maxSize, err)
		}
		e.maxBytes = n
	}
	return e, nil
}

// Classify maps a declared content type to an attachment kind. The policy is
// prefix-based for images and videos, and an exact/prefix/substring match for
// documents (PDF, any text type, anything mentioning "document").
func Classify(contentType string) (chat.AttachmentKind, bool) {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return chat.AttachmentImage, true
	case strings.HasPrefix(contentType, "video/"):
		return chat.AttachmentVideo, true
	case contentType == "application/pdf",
		strings.HasPrefix(contentType, "text/"),
		strings.Contains(contentType, "document"):
		return chat.AttachmentDocument, true
	}
	return "", false
}

// Encode classifies and encodes a single file into an inline attachment.
// Unclassified types return ErrUnsupportedType and no attachment.
func (e *Encoder) Encode(name, contentType string, data []byte) (chat.Attachment, error) {
	kind, ok := Classify(contentType)
	if !ok {
		return chat.Attachment{}, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	if e.maxBytes > 0 && int64(len(data)) > e.maxBytes {
		return chat.Attachment{}, fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, len(data), e.maxBytes)
	}

	att := chat.Attachment{
		Kind: kind,
		Data: DataURL(contentType, data),
	}
	if kind == chat.AttachmentDocument {
		att.Name = name
	}
	return att, nil
}

// DataURL builds a data-URL inline reference for the given payload.
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseInline splits an inline reference into its MIME type and base64
// payload. It accepts both data-URL strings and bare base64 payloads; bare
// payloads take defaultMIME.
func ParseInline(ref, defaultMIME string) (mimeType, payload string) {
	mimeType = defaultMIME
	payload = ref
	if i := strings.Index(ref, ";base64,"); i >= 0 {
		payload = ref[i+len(";base64,"):]
		head := ref[:i]
		if j := strings.LastIndex(head, ":"); j >= 0 && head[j+1:] != "" {
			mimeType = head[j+1:]
		}
	}
	return mimeType, payload
}
