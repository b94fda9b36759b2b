package session

import (
	"context"
	"errors"
	"strings"
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

// Session is one visitor's state: conversation, credential slot and the
// speech activities bound to their browser.
type Session struct {
	ID           uuid.UUID
	Conversation *conversation.Controller
	Listener     *speech.Listener
	Narrator     *speech.Narrator

	recognizer  *websocket.RemoteRecognizer
	synthesizer *websocket.RemoteSynthesizer
	creds       *credentialSlot

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// SetCapabilities records what the browser declared it can do.
func (s *Session) SetCapabilities(recognition, synthesis bool) {
	s.recognizer.SetSupported(recognition)
	s.synthesizer.SetSupported(synthesis)
}

func (s *Session) HasCredential(ctx context.Context) (bool, error) {
	key, err := s.creds.APIKey(ctx)
	return key != "", err
}

// LinkCredential stores a new API key for the session.
func (s *Session) LinkCredential(ctx context.Context, apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return &services.ValidationError{Fields: map[string]string{"api_key": "API key is required"}}
	}
	return s.creds.Set(ctx, apiKey)
}

func (s *Session) ResetCredential(ctx context.Context) error {
	return s.creds.Reset(ctx)
}

// View is the full render state of the session.
func (s *Session) View(ctx context.Context) (models.ConversationView, error) {
	view := s.Conversation.Snapshot()
	view.Listening = s.Listener.Listening()
	view.SpeakingID = s.Narrator.Speaking()

	has, err := s.HasCredential(ctx)
	if err != nil {
		return view, err
	}
	view.HasCredential = has
	return view, nil
}

func (s *Session) halt() {
	s.Listener.Halt()
	s.Narrator.Halt()
}

// credentialSlot is one session's view of the credential store. Writes go
// through mu so a revoke never drops a key linked after the failed call.
type credentialSlot struct {
	mu    sync.Mutex
	store services.CredentialStore
	id    uuid.UUID
	log   zerolog.Logger
}

// APIKey returns the linked key. A key that can no longer be opened, for
// instance after a secret rotation, is dropped and reads as missing.
func (c *credentialSlot) APIKey(ctx context.Context) (string, error) {
	key, err := c.store.Get(ctx, c.id)
	if errors.Is(err, services.ErrCredentialCorrupt) {
		c.log.Warn().Err(err).Msg("dropping unreadable credential")
		if derr := c.store.Delete(ctx, c.id); derr != nil {
			return "", derr
		}
		return "", nil
	}
	return key, err
}

func (c *credentialSlot) Set(ctx context.Context, apiKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Set(ctx, c.id, apiKey)
}

func (c *credentialSlot) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Delete(ctx, c.id)
}

func (c *credentialSlot) Revoke(ctx context.Context, apiKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, err := c.APIKey(ctx)
	if err != nil {
		return err
	}
	if current != apiKey {
		c.log.Info().Msg("credential relinked during turn, keeping it")
		return nil
	}
	return c.store.Delete(ctx, c.id)
}

// browserObserver forwards state changes to the session's websocket.
type browserObserver struct {
	pub websocket.Publisher
	id  uuid.UUID
	log zerolog.Logger
}

func (o *browserObserver) publish(msgType string, payload interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.pub.Publish(ctx, o.id, models.WSMessage{Type: msgType, Payload: payload}); err != nil {
		o.log.Warn().Err(err).Str("type", msgType).Msg("failed to push event")
	}
}

func (o *browserObserver) TurnStateChanged(ev models.TurnStateEvent) {
	o.publish(models.WSTurnState, ev)
}

func (o *browserObserver) DraftChanged(text string) {
	o.publish(models.WSDraft, models.DraftEvent{Text: text})
}

func (o *browserObserver) notifier(source string) speech.Notifier {
	return func(message string) {
		o.publish(models.WSNotice, models.NoticeEvent{Source: source, Message: message})
	}
}
