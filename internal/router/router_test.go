package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mestre7c-backend/internal/handlers"
	"mestre7c-backend/internal/metrics"
	"mestre7c-backend/internal/middleware"
	"mestre7c-backend/internal/models"
	"mestre7c-backend/internal/services"
	"mestre7c-backend/internal/session"
	"mestre7c-backend/internal/websocket"
)

type fixedGenerator struct{ reply string }

func (g fixedGenerator) Generate(ctx context.Context, apiKey string, env services.Envelope) (string, error) {
	return g.reply, nil
}

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	log := zerolog.Nop()
	m := metrics.New()
	jwtAuth := middleware.NewJWTAuth("secret", time.Hour)
	hub := websocket.NewHub(nil, jwtAuth, log)

	insight := services.NewInsightService(fixedGenerator{reply: "Use a dedeira."}, services.InsightOptions{
		Window:      8,
		Temperature: 0.8,
		TopP:        0.9,
		Timeout:     time.Second,
	}, m, log)

	sessions := session.NewManager(insight, services.NewMemoryCredentialStore(), hub, jwtAuth, m, session.Options{
		DefaultAPIKey: "server-key",
		Window:        insight.Window(),
		Lang:          services.RecognitionLang,
		TokenTTL:      time.Hour,
	}, log)
	hub.OnMessage(sessions.HandleClientMessage)

	rt := New(
		log,
		jwtAuth,
		handlers.NewAppHandler(services.AppInfo("5519987719618")),
		handlers.NewSessionHandler(sessions),
		handlers.NewCredentialHandler(sessions),
		handlers.NewConversationHandler(sessions),
		handlers.NewSpeechHandler(sessions),
		hub,
		m.Handler(),
		20,
		"http://localhost:5173",
	)
	t.Cleanup(rt.Close)
	return rt
}

func TestRouter_SessionAndTurn(t *testing.T) {
	r := newTestRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if rr.Header().Get(middleware.RequestIDHeader) == "" {
		t.Fatal("responses must carry a request id")
	}
	var sess models.SessionResponse
	json.NewDecoder(rr.Body).Decode(&sess)

	body, _ := json.Marshal(models.ChatRequest{Message: "Como fazer baixaria?"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversation/turns", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/conversation", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	var view models.ConversationView
	json.NewDecoder(rr.Body).Decode(&view)
	if len(view.Messages) != 2 || view.Messages[1].Text != "Use a dedeira." {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestRouter_RequiresBearer(t *testing.T) {
	r := newTestRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/conversation", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestRouter_PublicEndpoints(t *testing.T) {
	r := newTestRouter(t)

	for _, path := range []string{"/health", "/api/v1/app"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rr.Code)
		}
	}

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), "mestre_sessions_active 1") {
		t.Fatalf("expected session gauge in metrics output")
	}
}

func TestRouter_CloseIsIdempotent(t *testing.T) {
	r := newTestRouter(t)
	r.Close()
	r.Close()

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 after close, got %d", rr.Code)
	}
}
