package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mestre7c-backend/internal/conversation"
	"mestre7c-backend/internal/models"
	"mestre7c-backend/internal/services"
	"mestre7c-backend/internal/speech"
	"mestre7c-backend/internal/websocket"
)

// Hub is the websocket side the manager needs.
type Hub interface {
	websocket.Publisher
	Disconnect(sessionID uuid.UUID)
}

// TokenIssuer signs bearer tokens for new sessions.
type TokenIssuer interface {
	GenerateSessionToken(sessionID uuid.UUID) (string, error)
}

// Metrics is the subset of collectors sessions report to.
type Metrics interface {
	conversation.Recorder
	speech.RestartRecorder
	SetActiveSessions(n int)
}

type Options struct {
	// DefaultAPIKey is linked to every new session when set.
	DefaultAPIKey string
	Window        int
	Lang          string
	TokenTTL      time.Duration
}

// Manager owns every live session of this instance.
type Manager struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	pipeline conversation.Pipeline
	creds    services.CredentialStore
	hub      Hub
	tokens   TokenIssuer
	metrics  Metrics
	opts     Options
	log      zerolog.Logger
	now      func() time.Time
}

func NewManager(
	pipeline conversation.Pipeline,
	creds services.CredentialStore,
	hub Hub,
	tokens TokenIssuer,
	metrics Metrics,
	opts Options,
	log zerolog.Logger,
) *Manager {
	return &Manager{
		sessions: make(map[uuid.UUID]*Session),
		pipeline: pipeline,
		creds:    creds,
		hub:      hub,
		tokens:   tokens,
		metrics:  metrics,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

// Create starts a session and returns it with its bearer token.
func (m *Manager) Create(ctx context.Context) (*models.SessionResponse, *Session, error) {
	id := uuid.New()

	if m.opts.DefaultAPIKey != "" {
		if err := m.creds.Set(ctx, id, m.opts.DefaultAPIKey); err != nil {
			return nil, nil, fmt.Errorf("failed to seed credential: %w", err)
		}
	}

	token, err := m.tokens.GenerateSessionToken(id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	s := m.build(id)

	m.mu.Lock()
	m.sessions[id] = s
	count := len(m.sessions)
	m.mu.Unlock()
	m.metrics.SetActiveSessions(count)

	m.log.Info().Str("session_id", id.String()).Int("active", count).Msg("session created")

	return &models.SessionResponse{
		SessionID:     id,
		Token:         token,
		ExpiresIn:     int(m.opts.TokenTTL.Seconds()),
		HasCredential: m.opts.DefaultAPIKey != "",
	}, s, nil
}

func (m *Manager) build(id uuid.UUID) *Session {
	log := m.log.With().Str("session_id", id.String()).Logger()
	obs := &browserObserver{pub: m.hub, id: id, log: log}
	slot := &credentialSlot{store: m.creds, id: id, log: log}

	ctrl := conversation.NewController(m.pipeline, slot, conversation.Options{
		Window:   m.opts.Window,
		Observer: obs,
		Recorder: m.metrics,
		Logger:   log,
	})

	rec := websocket.NewRemoteRecognizer(m.hub, id, m.opts.Lang)
	synth := websocket.NewRemoteSynthesizer(m.hub, id, m.opts.Lang)
	listener := speech.NewListener(rec, ctrl, obs.notifier("recognition"), m.metrics)
	narrator := speech.NewNarrator(synth, obs.notifier("synthesis"))
	ctrl.AttachSpeech(listener, narrator)

	return &Session{
		ID:           id,
		Conversation: ctrl,
		Listener:     listener,
		Narrator:     narrator,
		recognizer:   rec,
		synthesizer:  synth,
		creds:        slot,
		lastSeen:     m.now(),
	}
}

// Get returns a live session and marks it as used.
func (m *Manager) Get(id uuid.UUID) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		s.Touch(m.now())
	}
	return s, ok
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Remove ends a session: speech is halted, the credential is dropped and
// websocket connections are closed.
func (m *Manager) Remove(ctx context.Context, id uuid.UUID) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	count := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return false
	}

	s.halt()
	if err := m.creds.Delete(ctx, id); err != nil {
		m.log.Warn().Err(err).Str("session_id", id.String()).Msg("failed to drop credential")
	}
	m.hub.Disconnect(id)
	m.metrics.SetActiveSessions(count)
	return true
}

// Sweep removes sessions idle for longer than idle. Sessions with a turn in
// flight are kept.
func (m *Manager) Sweep(ctx context.Context, idle time.Duration) int {
	cutoff := m.now().Add(-idle)

	m.mu.RLock()
	var stale []uuid.UUID
	for id, s := range m.sessions {
		if s.LastSeen().Before(cutoff) && !s.Conversation.Busy() {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	removed := 0
	for _, id := range stale {
		if m.Remove(ctx, id) {
			removed++
		}
	}
	if removed > 0 {
		m.log.Info().Int("removed", removed).Int("active", m.Count()).Msg("idle sessions evicted")
	}
	return removed
}

// HandleClientMessage routes a websocket frame to the session's speech
// activities.
func (m *Manager) HandleClientMessage(id uuid.UUID, msg models.ClientMessage) {
	s, ok := m.Get(id)
	if !ok {
		return
	}

	p := msg.Payload
	switch msg.Type {
	case models.WSCapabilities:
		s.SetCapabilities(p.SpeechRecognition, p.SpeechSynthesis)
	case models.WSSpeechResult:
		s.Listener.HandleResult(p.Transcript, p.Final)
	case models.WSSpeechEnd:
		s.Listener.HandleEnd()
	case models.WSSpeechError:
		s.Listener.HandleError(p.Code)
	case models.WSSpeechFinished:
		s.Narrator.Finished(p.ID)
	default:
		m.log.Debug().Str("session_id", id.String()).Str("type", msg.Type).Msg("ignoring unknown client message")
	}
}
