package gateway

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/genzai-dev/genzai/internal/chat"
)

// fakeProvider records the last call and replies with a canned response.
type fakeProvider struct {
	lastModelID string
	lastSystem  string
	lastTurns   []turn
	resp        providerResponse
	err         error
}

func (f *fakeProvider) name() string { return "fake" }

func (f *fakeProvider) generate(_ context.Context, modelID, system string, turns []turn) (providerResponse, error) {
	f.lastModelID = modelID
	f.lastSystem = system
	f.lastTurns = turns
	return f.resp, f.err
}

func TestCompleteStrictReducesHistory(t *testing.T) {
	fake := &fakeProvider{resp: providerResponse{Parts: []part{textPart("ok")}}}
	g := New(fake)

	att := chat.Attachment{Kind: chat.AttachmentImage, Data: "data:image/png;base64,QUJD"}
	history := []chat.Message{
		chat.NewUserMessage("hello", att),
		chat.NewModelMessage("hi there", ""),
		chat.NewUserMessage("show me", chat.Attachment{}),
	}

	_, err := g.CompleteStrict(context.Background(), Request{
		Text:    "show me",
		ModelID: "gemini-2.5-flash",
		History: history,
		Image:   "data:image/png;base64,WFla",
	})
	if err != nil {
		t.Fatalf("CompleteStrict: %v", err)
	}

	if len(fake.lastTurns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(fake.lastTurns))
	}

	// Prior turns carry text only, even when the original message had an
	// attachment.
	first := fake.lastTurns[0]
	if first.Role != chat.RoleUser || len(first.Parts) != 1 || first.Parts[0].isMedia() {
		t.Errorf("first turn not reduced to text: %+v", first)
	}
	if first.Parts[0].Text != "hello" {
		t.Errorf("first turn text = %q, want %q", first.Parts[0].Text, "hello")
	}
	if fake.lastTurns[1].Role != chat.RoleModel {
		t.Errorf("second turn role = %q, want model", fake.lastTurns[1].Role)
	}

	// The current turn carries text plus the inline attachment.
	current := fake.lastTurns[2]
	if len(current.Parts) != 2 {
		t.Fatalf("current turn parts = %d, want 2", len(current.Parts))
	}
	if current.Parts[0].Text != "show me" {
		t.Errorf("current text = %q", current.Parts[0].Text)
	}
	mp := current.Parts[1]
	if !mp.isMedia() || mp.MIME != "image/png" || mp.Data != "WFla" {
		t.Errorf("current media part = %+v", mp)
	}
}

func TestCompleteStrictBareBase64Defaults(t *testing.T) {
	cases := []struct {
		name     string
		req      Request
		wantMIME string
	}{
		{"image", Request{Text: "x", Image: "QUJD"}, "image/jpeg"},
		{"video", Request{Text: "x", Video: "QUJD"}, "video/mp4"},
		{"document", Request{Text: "x", Document: "QUJD"}, "application/pdf"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeProvider{resp: providerResponse{Parts: []part{textPart("ok")}}}
			g := New(fake)
			if _, err := g.CompleteStrict(context.Background(), tc.req); err != nil {
				t.Fatalf("CompleteStrict: %v", err)
			}
			turns := fake.lastTurns
			parts := turns[len(turns)-1].Parts
			if len(parts) != 2 {
				t.Fatalf("parts = %d, want 2", len(parts))
			}
			if parts[1].MIME != tc.wantMIME {
				t.Errorf("MIME = %q, want %q", parts[1].MIME, tc.wantMIME)
			}
			if parts[1].Data != "QUJD" {
				t.Errorf("Data = %q, want raw payload", parts[1].Data)
			}
		})
	}
}

func TestInstructionSelection(t *testing.T) {
	fake := &fakeProvider{resp: providerResponse{Parts: []part{textPart("ok")}}}
	g := New(fake)

	if _, err := g.CompleteStrict(context.Background(), Request{Text: "draw", ModelID: ImageGenModelID}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(fake.lastSystem, "Genz Art") {
		t.Errorf("image-gen model should select the image instruction, got %q", fake.lastSystem)
	}

	if _, err := g.CompleteStrict(context.Background(), Request{Text: "chat", ModelID: "gemini-2.5-flash"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(fake.lastSystem, "GenzAI") {
		t.Errorf("regular model should select the assistant instruction, got %q", fake.lastSystem)
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		resp providerResponse
		want Result
	}{
		{
			name: "concatenates text in order",
			resp: providerResponse{Parts: []part{textPart("a"), textPart("b"), textPart("c")}},
			want: Result{Text: "abc"},
		},
		{
			name: "last media wins",
			resp: providerResponse{Parts: []part{
				mediaPart("image/png", "AAA"),
				textPart("here"),
				mediaPart("image/webp", "BBB"),
			}},
			want: Result{Text: "here", GeneratedImage: "data:image/webp;base64,BBB"},
		},
		{
			name: "fallback only when empty",
			resp: providerResponse{Fallback: "blocked"},
			want: Result{Text: "blocked"},
		},
		{
			name: "fallback ignored when media present",
			resp: providerResponse{Parts: []part{mediaPart("image/png", "AAA")}, Fallback: "blocked"},
			want: Result{GeneratedImage: "data:image/png;base64,AAA"},
		},
		{
			name: "empty response stays empty",
			resp: providerResponse{},
			want: Result{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := normalize(tc.resp)
			if got != tc.want {
				t.Errorf("normalize() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestCompleteAbsorbsProviderFailure(t *testing.T) {
	fake := &fakeProvider{err: errors.New("connection refused")}
	g := New(fake)

	res, err := g.Complete(context.Background(), Request{Text: "hi"})
	if err != nil {
		t.Fatalf("Complete must not fail: %v", err)
	}
	if res.Text != ApologyOffline {
		t.Errorf("Text = %q, want offline apology", res.Text)
	}
	if res.GeneratedImage != "" {
		t.Errorf("GeneratedImage = %q, want empty", res.GeneratedImage)
	}
}

func TestCompleteStrictSurfacesFailure(t *testing.T) {
	fake := &fakeProvider{err: errors.New("boom")}
	g := New(fake)

	if _, err := g.CompleteStrict(context.Background(), Request{Text: "hi"}); err == nil {
		t.Fatal("expected error from CompleteStrict")
	}
}

func TestCompleteStrictEmptyHistory(t *testing.T) {
	fake := &fakeProvider{resp: providerResponse{Parts: []part{textPart("ok")}}}
	g := New(fake)

	if _, err := g.CompleteStrict(context.Background(), Request{Text: "first"}); err != nil {
		t.Fatal(err)
	}
	if len(fake.lastTurns) != 1 {
		t.Fatalf("turns = %d, want 1", len(fake.lastTurns))
	}
	if fake.lastTurns[0].Role != chat.RoleUser {
		t.Errorf("role = %q, want user", fake.lastTurns[0].Role)
	}
}
