package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"mestre7c-backend/internal/models"
	"mestre7c-backend/internal/services"
)

type CredentialHandler struct {
	sessions sessionStore
}

func NewCredentialHandler(sessions sessionStore) *CredentialHandler {
	return &CredentialHandler{sessions: sessions}
}

func (h *CredentialHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r, h.sessions)
	if !ok {
		return
	}

	has, err := s.HasCredential(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to read credential")
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.CredentialStatus{HasCredential: has, CredentialURL: services.CredentialURL})
}

// Link stores the key chosen by the user. It is not validated upstream;
// a bad key surfaces as a reauth failure on the next turn.
func (h *CredentialHandler) Link(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r, h.sessions)
	if !ok {
		return
	}

	var req models.CredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if err := s.LinkCredential(r.Context(), req.APIKey); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.CredentialStatus{HasCredential: true, CredentialURL: services.CredentialURL})
}

func (h *CredentialHandler) Reset(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r, h.sessions)
	if !ok {
		return
	}

	if err := s.ResetCredential(r.Context()); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to reset credential")
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
