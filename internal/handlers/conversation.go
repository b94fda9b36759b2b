package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"

	"mestre7c-backend/internal/conversation"
	"mestre7c-backend/internal/models"
	"mestre7c-backend/internal/services"
)

type ConversationHandler struct {
	sessions sessionStore
}

func NewConversationHandler(sessions sessionStore) *ConversationHandler {
	return &ConversationHandler{sessions: sessions}
}

func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r, h.sessions)
	if !ok {
		return
	}

	view, err := s.View(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Submit runs one turn. Failed turns answer with the restored input so the
// page can put it back into the input bar.
func (h *ConversationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r, h.sessions)
	if !ok {
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	res, err := s.Conversation.Submit(r.Context(), req.Message)
	if err != nil {
		var turnErr *conversation.TurnError
		if errors.As(err, &turnErr) {
			hlog.FromRequest(r).Warn().
				Str("kind", string(turnErr.Err.Kind)).
				Bool("credential_required", turnErr.CredentialRequired).
				Msg("turn rolled back")
		}
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{Question: res.Question, Reply: res.Reply})
}

func (h *ConversationHandler) Clear(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r, h.sessions)
	if !ok {
		return
	}

	s.Narrator.Cancel()
	s.Conversation.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (h *ConversationHandler) DismissError(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r, h.sessions)
	if !ok {
		return
	}

	s.Conversation.DismissError()
	w.WriteHeader(http.StatusNoContent)
}

func (h *ConversationHandler) SetDraft(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r, h.sessions)
	if !ok {
		return
	}

	var req models.DraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	s.Conversation.SetDraft(req.Text)
	w.WriteHeader(http.StatusNoContent)
}

// responseClipboard hands copied text back to the browser, which owns the
// real clipboard.
type responseClipboard struct {
	w http.ResponseWriter
}

func (c responseClipboard) Write(ctx context.Context, text string) error {
	writeJSON(c.w, http.StatusOK, models.CopyResponse{Text: text})
	return nil
}

func (h *ConversationHandler) Copy(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r, h.sessions)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid message ID", r))
		return
	}

	if err := s.Conversation.Copy(r.Context(), id, responseClipboard{w: w}); err != nil {
		handleServiceError(w, r, err)
	}
}

// Speak toggles narration of an assistant message.
func (h *ConversationHandler) Speak(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r, h.sessions)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid message ID", r))
		return
	}

	msg, found := s.Conversation.Message(id)
	if !found {
		handleServiceError(w, r, &services.NotFoundError{Message: "Message not found"})
		return
	}
	if msg.Role != models.RoleAssistant {
		handleServiceError(w, r, &services.ValidationError{Fields: map[string]string{"id": "Only assistant messages can be read aloud"}})
		return
	}

	if _, err := s.Narrator.Toggle(msg.ID.String(), msg.Text); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.SpeechState{
		Listening:  s.Listener.Listening(),
		SpeakingID: s.Narrator.Speaking(),
	})
}
