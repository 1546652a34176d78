package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/genzai-dev/genzai/internal/chat"
	"github.com/genzai-dev/genzai/internal/config"
	"github.com/genzai-dev/genzai/internal/gateway"
	"github.com/genzai-dev/genzai/internal/media"
	"github.com/genzai-dev/genzai/internal/orchestrator"
	"github.com/genzai-dev/genzai/internal/session"
)

// newFakeGemini serves the native generateContent shape.
func newFakeGemini(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestGateway(t *testing.T, backend *httptest.Server) *gateway.Gateway {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("GEMINI_BASE_URL", backend.URL)
	gw, err := gateway.NewFromEnv("gemini")
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
	return gw
}

func newTestHandler(t *testing.T, gw *gateway.Gateway) (*Handler, *session.Store) {
	t.Helper()
	ctx := context.Background()

	store, err := session.NewStore(ctx, filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	encoder, err := media.NewEncoder("12MiB")
	if err != nil {
		t.Fatal(err)
	}
	catalog := config.NewCatalog("")

	var completer orchestrator.Completer
	if gw != nil {
		completer = gw
	}
	orch := orchestrator.New(store, completer, encoder, catalog)
	return NewHandler(orch, gw, store, catalog, ""), store
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChatEndpoint(t *testing.T) {
	backend := newFakeGemini(t, http.StatusOK,
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"Halo!"}]}}]}`)
	h, _ := newTestHandler(t, newTestGateway(t, backend))
	routes := h.Routes()

	rec := doJSON(t, routes, http.MethodPost, "/api/chat", map[string]any{
		"message": "Hello",
		"history": []map[string]string{{"role": "user", "text": "Hello"}},
		"modelId": "gemini-2.5-flash",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var res gateway.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Text != "Halo!" {
		t.Errorf("text = %q", res.Text)
	}
}

func TestChatMethodNotAllowed(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	rec := doJSON(t, h.Routes(), http.MethodGet, "/api/chat", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Method not allowed") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestChatInvalidBody(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	routes := h.Routes()

	// modelId missing entirely.
	rec := doJSON(t, routes, http.MethodPost, "/api/chat", map[string]any{
		"message": "Hello",
		"history": []map[string]string{},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing modelId: status = %d, want 400", rec.Code)
	}

	// History with an invalid role.
	rec = doJSON(t, routes, http.MethodPost, "/api/chat", map[string]any{
		"message": "Hello",
		"modelId": "m",
		"history": []map[string]string{{"role": "robot", "text": "x"}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad role: status = %d, want 400", rec.Code)
	}
}

func TestChatMissingCredential(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	rec := doJSON(t, h.Routes(), http.MethodPost, "/api/chat", map[string]any{
		"message": "Hello",
		"history": []map[string]string{},
		"modelId": "gemini-2.5-flash",
	})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Server configuration error: API Key missing") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestChatProviderFailure(t *testing.T) {
	backend := newFakeGemini(t, http.StatusBadGateway,
		`{"error":{"code":502,"message":"upstream broke"}}`)
	h, _ := newTestHandler(t, newTestGateway(t, backend))

	rec := doJSON(t, h.Routes(), http.MethodPost, "/api/chat", map[string]any{
		"message": "Hello",
		"history": []map[string]string{},
		"modelId": "gemini-2.5-flash",
	})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["text"] != gateway.ApologyServer {
		t.Errorf("text = %q, want the fixed apology", body["text"])
	}
	if body["details"] == "" {
		t.Errorf("details missing from error body")
	}
}

func TestSendEndpoint(t *testing.T) {
	backend := newFakeGemini(t, http.StatusOK,
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"Halo!"}]}}]}`)
	h, store := newTestHandler(t, newTestGateway(t, backend))
	routes := h.Routes()

	rec := doJSON(t, routes, http.MethodPost, "/api/send", map[string]string{"text": "Hello"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var res sendResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Messages) != 2 {
		t.Errorf("messages = %d, want 2", len(res.Messages))
	}
	if res.SessionID == "" {
		t.Errorf("sessionId missing")
	}
	if store.Len() != 1 {
		t.Errorf("store sessions = %d, want 1", store.Len())
	}

	rec = doJSON(t, routes, http.MethodPost, "/api/send", map[string]string{"text": "   "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty send: status = %d, want 400", rec.Code)
	}
}

func TestAttachLifecycle(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	routes := h.Routes()

	rec := doJSON(t, routes, http.MethodPost, "/api/attach", map[string]string{
		"name":        "cat.png",
		"contentType": "image/png",
		"data":        "iVBORw0KGgo=",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var snap orchestrator.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Attachment == nil || snap.Attachment.Kind != chat.AttachmentImage {
		t.Errorf("attachment = %+v", snap.Attachment)
	}

	rec = doJSON(t, routes, http.MethodPost, "/api/attach", map[string]string{
		"name":        "x.bin",
		"contentType": "application/octet-stream",
		"data":        "AAAA",
	})
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("unsupported: status = %d, want 415", rec.Code)
	}

	rec = doJSON(t, routes, http.MethodDelete, "/api/attach", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete: status = %d, want 204", rec.Code)
	}
}

func TestSessionEndpoints(t *testing.T) {
	backend := newFakeGemini(t, http.StatusOK,
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"tentu"}]}}]}`)
	h, _ := newTestHandler(t, newTestGateway(t, backend))
	routes := h.Routes()

	doJSON(t, routes, http.MethodPost, "/api/send", map[string]string{"text": "resep nasi goreng"})

	rec := doJSON(t, routes, http.MethodGet, "/api/sessions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("sessions: status = %d", rec.Code)
	}
	var sessions []chat.ChatSession
	if err := json.Unmarshal(rec.Body.Bytes(), &sessions); err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(sessions))
	}

	rec = doJSON(t, routes, http.MethodGet, "/api/sessions/search?q=goreng", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("search: status = %d", rec.Code)
	}
	var hits []chat.ChatSession
	if err := json.Unmarshal(rec.Body.Bytes(), &hits); err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("search hits = %d, want 1", len(hits))
	}

	doJSON(t, routes, http.MethodPost, "/api/new", nil)
	rec = doJSON(t, routes, http.MethodPost, "/api/sessions/load", map[string]string{"id": sessions[0].ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("load: status = %d", rec.Code)
	}

	rec = doJSON(t, routes, http.MethodPost, "/api/sessions/load", map[string]string{"id": "missing"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("load missing: status = %d, want 404", rec.Code)
	}

	rec = doJSON(t, routes, http.MethodPost, "/api/sessions/clear", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("clear: status = %d, want 204", rec.Code)
	}
	rec = doJSON(t, routes, http.MethodGet, "/api/sessions", nil)
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" && body != "null" {
		t.Errorf("sessions after clear = %s", body)
	}
}

func TestModelsEndpoint(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	rec := doJSON(t, h.Routes(), http.MethodGet, "/api/models", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var models []config.ModelOption
	if err := json.Unmarshal(rec.Body.Bytes(), &models); err != nil {
		t.Fatal(err)
	}
	if len(models) != 7 {
		t.Errorf("models = %d, want 7", len(models))
	}
}

func TestShortcutEndpoint(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	routes := h.Routes()

	rec := doJSON(t, routes, http.MethodPost, "/api/shortcut", map[string]string{"feature": "video-insight"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var snap orchestrator.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Accept != media.AcceptVideo {
		t.Errorf("accept = %q, want video-only", snap.Accept)
	}

	rec = doJSON(t, routes, http.MethodPost, "/api/shortcut", map[string]string{"feature": "dance"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown shortcut: status = %d, want 400", rec.Code)
	}
}
