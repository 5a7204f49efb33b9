package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	datasetFallback = "Upload failed."
	chatFallback    = "Could not fetch AI response."
)

// AssistantHandler handles the dataset assistant.
type AssistantHandler struct {
	deps    AssistantDependencies
	uploads uploadReader
}

// NewAssistantHandler creates a new assistant handler.
func NewAssistantHandler(deps AssistantDependencies, uploads uploadReader) *AssistantHandler {
	return &AssistantHandler{deps: deps, uploads: uploads}
}

// HandleDataset handles POST /assistant/dataset requests.
func (h *AssistantHandler) HandleDataset(w http.ResponseWriter, r *http.Request) {
	const op = "api.assistant_dataset"
	sess, ok := SessionFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, ErrUnauthorized))
		return
	}
	up, err := h.uploads.read(w, r)
	if err != nil {
		writeFailure(w, op, datasetFallback, err)
		return
	}
	res, err := h.deps.UploadDataset(r.Context(), sess, up)
	if err != nil {
		writeFailure(w, op, datasetFallback, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleChat handles POST /assistant/chat requests.
func (h *AssistantHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	const op = "api.assistant_chat"
	sess, ok := SessionFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, ErrUnauthorized))
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("invalid JSON body")))
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeFailure(w, op, chatFallback, fmt.Errorf("%w: please enter a question", ErrValidation))
		return
	}
	res, err := h.deps.Chat(r.Context(), sess, question)
	if err != nil {
		writeFailure(w, op, chatFallback, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
