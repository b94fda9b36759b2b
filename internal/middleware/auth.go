package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const SessionIDKey contextKey = "session_id"

const sessionClaim = "session_id"

var ErrNoSessionClaim = errors.New("token carries no session id")

// JWTAuth issues and verifies the HS256 tokens that name a chat session.
// The same tokens authenticate REST calls and websocket upgrades.
type JWTAuth struct {
	Secret []byte
	TTL    time.Duration
}

func NewJWTAuth(secret string, ttl time.Duration) *JWTAuth {
	return &JWTAuth{Secret: []byte(secret), TTL: ttl}
}

// GenerateSessionToken creates a JWT bound to one chat session.
func (j *JWTAuth) GenerateSessionToken(sessionID uuid.UUID) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		sessionClaim: sessionID.String(),
		"exp":        now.Add(j.TTL).Unix(),
		"iat":        now.Unix(),
	})
	return token.SignedString(j.Secret)
}

// ParseSessionToken verifies tokenStr and returns the session it names.
// Expired tokens yield an error wrapping jwt.ErrTokenExpired.
func (j *JWTAuth) ParseSessionToken(tokenStr string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return j.Secret, nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid session token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return uuid.Nil, jwt.ErrTokenInvalidClaims
	}

	idStr, ok := claims[sessionClaim].(string)
	if !ok {
		return uuid.Nil, ErrNoSessionClaim
	}
	sessionID, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrNoSessionClaim, err)
	}
	return sessionID, nil
}

// Middleware requires a bearer session token and stores the session id in
// the request context.
func (j *JWTAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheme, tokenStr, found := strings.Cut(r.Header.Get("Authorization"), " ")
		if !found || scheme != "Bearer" || tokenStr == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or malformed bearer token", r)
			return
		}

		sessionID, err := j.ParseSessionToken(tokenStr)
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "Session has expired", r)
			return
		case errors.Is(err, ErrNoSessionClaim):
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid session ID in token", r)
			return
		case err != nil:
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token", r)
			return
		}

		ctx := context.WithValue(r.Context(), SessionIDKey, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSessionID returns the session attached by Middleware, or uuid.Nil.
func GetSessionID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(SessionIDKey).(uuid.UUID)
	return id
}

func writeError(w http.ResponseWriter, status int, code, message string, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":       code,
			"message":    message,
			"request_id": r.Header.Get(RequestIDHeader),
		},
	})
}
