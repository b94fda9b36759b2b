package handlers

import (
	"net/http"

	"github.com/rs/zerolog/hlog"

	"mestre7c-backend/internal/models"
)

type AppHandler struct {
	info models.AppInfo
}

func NewAppHandler(info models.AppInfo) *AppHandler {
	return &AppHandler{info: info}
}

// Info returns the static chrome of the chat page.
func (h *AppHandler) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.info)
}

type SessionHandler struct {
	sessions sessionStore
}

func NewSessionHandler(sessions sessionStore) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	resp, _, err := h.sessions.Create(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to create session")
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}
