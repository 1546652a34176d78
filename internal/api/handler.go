// Package api exposes the conversation subsystem over HTTP: the provider
// forwarding endpoint plus the session and conversation actions.
package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/genzai-dev/genzai/internal/chat"
	"github.com/genzai-dev/genzai/internal/config"
	"github.com/genzai-dev/genzai/internal/gateway"
	"github.com/genzai-dev/genzai/internal/media"
	"github.com/genzai-dev/genzai/internal/orchestrator"
	"github.com/genzai-dev/genzai/internal/session"
)

const missingCredentialError = "Server configuration error: API Key missing"

// maxChatBody caps the forwarding endpoint's body. Inline video pushes
// request sizes well past typical JSON payloads.
const maxChatBody = 64 << 20

type Handler struct {
	orch    *orchestrator.Orchestrator
	gw      *gateway.Gateway
	store   *session.Store
	catalog *config.Catalog
	webDir  string
}

// NewHandler wires the HTTP surface. gw may be nil when no provider
// credential is configured; the forwarding endpoint then reports a
// configuration error per request.
func NewHandler(orch *orchestrator.Orchestrator, gw *gateway.Gateway, store *session.Store, catalog *config.Catalog, webDir string) *Handler {
	return &Handler{orch: orch, gw: gw, store: store, catalog: catalog, webDir: webDir}
}

// Routes builds the full mux, request logging included.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", h.HandleChat)
	mux.HandleFunc("/api/send", h.HandleSend)
	mux.HandleFunc("/api/attach", h.HandleAttach)
	mux.HandleFunc("/api/new", h.HandleNewChat)
	mux.HandleFunc("/api/shortcut", h.HandleShortcut)
	mux.HandleFunc("/api/conversation", h.HandleConversation)
	mux.HandleFunc("/api/models", h.HandleModels)
	mux.HandleFunc("/api/sessions", h.HandleSessions)
	mux.HandleFunc("/api/sessions/load", h.HandleSessionLoad)
	mux.HandleFunc("/api/sessions/clear", h.HandleSessionsClear)
	mux.HandleFunc("/api/sessions/search", h.HandleSessionSearch)
	if h.webDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(h.webDir)))
	}
	return requestLogger(mux)
}

type chatRequest struct {
	Message        string         `json:"message"`
	History        []chat.Message `json:"history"`
	ModelID        string         `json:"modelId"`
	ImageBase64    string         `json:"imageBase64"`
	VideoBase64    string         `json:"videoBase64"`
	DocumentBase64 string         `json:"documentBase64"`
}

// HandleChat is the provider forwarding endpoint. It validates the body,
// calls the gateway strictly, and reports provider failures as HTTP 500 with
// the fixed apology text.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxChatBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if err := validateChatRequest(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if h.gw == nil {
		writeError(w, http.StatusInternalServerError, missingCredentialError)
		return
	}

	res, err := h.gw.CompleteStrict(r.Context(), gateway.Request{
		Text:     req.Message,
		ModelID:  req.ModelID,
		History:  req.History,
		Image:    req.ImageBase64,
		Video:    req.VideoBase64,
		Document: req.DocumentBase64,
	})
	if err != nil {
		log.Error().Err(err).Str("model", req.ModelID).Msg("provider call failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"text":    gateway.ApologyServer,
			"details": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type sendRequest struct {
	Text string `json:"text"`
}

type sendResponse struct {
	Messages  []chat.Message `json:"messages"`
	SessionID string         `json:"sessionId,omitempty"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msgs, err := h.orch.Send(r.Context(), req.Text)
	switch {
	case errors.Is(err, orchestrator.ErrBusy):
		writeError(w, http.StatusConflict, "a send is already in flight")
		return
	case errors.Is(err, orchestrator.ErrEmptySend):
		writeError(w, http.StatusBadRequest, "nothing to send")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, sendResponse{
		Messages:  msgs,
		SessionID: h.orch.Snapshot().SessionID,
	})
}

type attachRequest struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Data        string `json:"data"`
}

// HandleAttach stages (POST) or removes (DELETE) the staged attachment.
// POST accepts either a multipart form with a "file" field or a JSON body
// with a base64 payload.
func (h *Handler) HandleAttach(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodDelete:
		h.orch.RemoveAttachment()
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodPost:
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	name, contentType, data, err := readAttachment(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.orch.StageAttachment(name, contentType, data); err != nil {
		switch {
		case errors.Is(err, media.ErrUnsupportedType):
			writeError(w, http.StatusUnsupportedMediaType, err.Error())
		case errors.Is(err, media.ErrTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, h.orch.Snapshot())
}

func readAttachment(r *http.Request) (name, contentType string, data []byte, err error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxChatBody); err != nil {
			return "", "", nil, errors.New("invalid multipart form")
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", "", nil, errors.New("missing file field")
		}
		defer file.Close()
		data, err = io.ReadAll(file)
		if err != nil {
			return "", "", nil, errors.New("failed to read file")
		}
		return header.Filename, header.Header.Get("Content-Type"), data, nil
	}

	var req attachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", "", nil, errors.New("invalid request body")
	}
	data, err = base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return "", "", nil, errors.New("data is not valid base64")
	}
	return req.Name, req.ContentType, data, nil
}

func (h *Handler) HandleNewChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	h.orch.NewChat()
	writeJSON(w, http.StatusOK, h.orch.Snapshot())
}

type shortcutRequest struct {
	Feature string `json:"feature"`
}

func (h *Handler) HandleShortcut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req shortcutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.orch.Shortcut(req.Feature); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.orch.Snapshot())
}

func (h *Handler) HandleConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, h.orch.Snapshot())
}

func (h *Handler) HandleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, h.catalog.Models())
}

func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, h.store.List())
}

type loadRequest struct {
	ID string `json:"id"`
}

func (h *Handler) HandleSessionLoad(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req loadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.orch.LoadSession(req.ID); err != nil {
		if errors.Is(err, orchestrator.ErrUnknownSession) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.orch.Snapshot())
}

func (h *Handler) HandleSessionsClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if err := h.orch.ClearAll(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleSessionSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	results, err := h.store.Search(query, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
