package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestJWTAuth_AttachesSessionID(t *testing.T) {
	auth := NewJWTAuth("secret", time.Hour)
	id := uuid.New()
	token, err := auth.GenerateSessionToken(id)
	if err != nil {
		t.Fatal(err)
	}

	var got uuid.UUID
	h := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetSessionID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got != id {
		t.Fatalf("expected session %s, got %s", id, got)
	}
}

func TestJWTAuth_Rejects(t *testing.T) {
	auth := NewJWTAuth("secret", time.Hour)
	expired := NewJWTAuth("secret", -time.Minute)
	expiredToken, _ := expired.GenerateSessionToken(uuid.New())
	foreignToken, _ := NewJWTAuth("other", time.Hour).GenerateSessionToken(uuid.New())

	noSession := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	noSessionToken, _ := noSession.SignedString([]byte("secret"))

	tests := []struct {
		name     string
		header   string
		wantCode string
	}{
		{"missing", "", "UNAUTHORIZED"},
		{"bad format", "Token abc", "UNAUTHORIZED"},
		{"foreign signature", "Bearer " + foreignToken, "UNAUTHORIZED"},
		{"expired", "Bearer " + expiredToken, "TOKEN_EXPIRED"},
		{"no session claim", "Bearer " + noSessionToken, "UNAUTHORIZED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			auth.Middleware(okHandler()).ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.wantCode) {
				t.Fatalf("expected code %s in %s", tt.wantCode, rec.Body.String())
			}
		})
	}
}

func TestJWTAuth_ParseSessionToken(t *testing.T) {
	auth := NewJWTAuth("secret", time.Hour)
	id := uuid.New()
	token, _ := auth.GenerateSessionToken(id)

	got, err := auth.ParseSessionToken(token)
	if err != nil || got != id {
		t.Fatalf("expected %s, got %s %v", id, got, err)
	}

	expiredToken, _ := NewJWTAuth("secret", -time.Minute).GenerateSessionToken(id)
	if _, err := auth.ParseSessionToken(expiredToken); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected expired error, got %v", err)
	}

	badID := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"session_id": "not-a-uuid",
		"exp":        time.Now().Add(time.Hour).Unix(),
	})
	badIDToken, _ := badID.SignedString([]byte("secret"))
	if _, err := auth.ParseSessionToken(badIDToken); !errors.Is(err, ErrNoSessionClaim) {
		t.Fatalf("expected ErrNoSessionClaim, got %v", err)
	}
}

func TestRateLimiter_CloseTwice(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	rl.Close()
	rl.Close()
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Close()
	h := rl.Middleware(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected codes %v", codes)
	}

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.2:5000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("other clients must have their own bucket, got %d", rec.Code)
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(RequestIDHeader)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rec.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("expected generated id echoed, got %q / %q", seen, rec.Header().Get(RequestIDHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "abc-123" || rec.Header().Get(RequestIDHeader) != "abc-123" {
		t.Fatalf("incoming id must be kept, got %q", seen)
	}
}

func TestCORS(t *testing.T) {
	h := CORS("http://localhost:5173, https://mestre7c.app")(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions", nil)
	req.Header.Set("Origin", "https://mestre7c.app")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "https://mestre7c.app" {
		t.Fatalf("expected preflight allowed, got %d %v", rec.Code, rec.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("unknown origins must not be allowed")
	}
}
