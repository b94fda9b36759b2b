package handlers

import (
	"encoding/json"
	"net/http"

	"mestre7c-backend/internal/models"
	"mestre7c-backend/internal/speech"
)

type SpeechHandler struct {
	sessions sessionStore
}

func NewSpeechHandler(sessions sessionStore) *SpeechHandler {
	return &SpeechHandler{sessions: sessions}
}

// Listen toggles dictation for the session.
func (h *SpeechHandler) Listen(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r, h.sessions)
	if !ok {
		return
	}

	if _, err := s.Listener.Toggle(); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.SpeechState{
		Listening:  s.Listener.Listening(),
		SpeakingID: s.Narrator.Speaking(),
	})
}

// Prepare returns the text that would be spoken for an arbitrary reply.
func (h *SpeechHandler) Prepare(w http.ResponseWriter, r *http.Request) {
	var req models.PrepareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	writeJSON(w, http.StatusOK, models.PrepareResponse{Text: speech.PrepareForSpeech(req.Text)})
}
