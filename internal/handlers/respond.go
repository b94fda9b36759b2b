package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"mestre7c-backend/internal/conversation"
	"mestre7c-backend/internal/middleware"
	"mestre7c-backend/internal/models"
	"mestre7c-backend/internal/services"
	"mestre7c-backend/internal/session"
	"mestre7c-backend/internal/speech"
)

// sessionStore is the part of session.Manager the handlers use.
type sessionStore interface {
	Create(ctx context.Context) (*models.SessionResponse, *session.Session, error)
	Get(id uuid.UUID) (*session.Session, bool)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{Error: apiError(code, message, r)}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	resp := errorResp(code, message, r)
	resp.Error.Fields = fields
	return resp
}

func apiError(code, message string, r *http.Request) models.APIError {
	return models.APIError{
		Code:      code,
		Message:   message,
		RequestID: r.Header.Get(middleware.RequestIDHeader),
	}
}

// currentSession resolves the bearer's session or writes a 401.
func currentSession(w http.ResponseWriter, r *http.Request, sessions sessionStore) (*session.Session, bool) {
	s, ok := sessions.Get(middleware.GetSessionID(r.Context()))
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResp("SESSION_EXPIRED", "Session has expired. Start a new one.", r))
		return nil, false
	}
	return s, true
}

func insightStatus(kind services.FailureKind) int {
	switch kind {
	case services.FailureReauthRequired:
		return http.StatusUnauthorized
	case services.FailureThrottled:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch e := err.(type) {
	case *services.ValidationError:
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", e.Fields, r))
	case *services.ConflictError:
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", e.Message, r))
	case *services.NotFoundError:
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", e.Message, r))
	case *services.UnauthorizedError:
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", e.Message, r))
	case *services.RateLimitError:
		writeJSON(w, http.StatusTooManyRequests, errorResp("RATE_LIMITED", e.Message, r))
	case *conversation.TurnError:
		writeJSON(w, insightStatus(e.Err.Kind), models.TurnFailure{
			Error:              apiError(strings.ToUpper(string(e.Err.Kind)), e.Err.Message, r),
			Input:              e.Input,
			CredentialRequired: e.CredentialRequired,
		})
	case *services.InsightError:
		writeJSON(w, insightStatus(e.Kind), errorResp(strings.ToUpper(string(e.Kind)), e.Message, r))
	default:
		switch {
		case errors.Is(err, conversation.ErrCredentialRequired):
			writeJSON(w, http.StatusUnauthorized, errorResp("CREDENTIAL_REQUIRED", services.MissingCredentialMessage, r))
		case errors.Is(err, speech.ErrUnsupported):
			writeJSON(w, http.StatusUnprocessableEntity, errorResp("UNSUPPORTED", "This browser does not support the requested speech feature", r))
		default:
			writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
		}
	}
}
