package websocket

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"mestre7c-backend/internal/models"
)

const publishTimeout = 5 * time.Second

// Publisher sends an event to a session's browser.
type Publisher interface {
	Publish(ctx context.Context, sessionID uuid.UUID, msg models.WSMessage) error
}

func sendControl(p Publisher, sessionID uuid.UUID, cmd models.SpeechCommand) error {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return p.Publish(ctx, sessionID, models.WSMessage{Type: models.WSSpeechControl, Payload: cmd})
}

// RemoteRecognizer drives the browser's speech recognition over the
// session's websocket. Results come back as speech_result frames.
type RemoteRecognizer struct {
	pub       Publisher
	sessionID uuid.UUID
	lang      string
	supported atomic.Bool
}

func NewRemoteRecognizer(pub Publisher, sessionID uuid.UUID, lang string) *RemoteRecognizer {
	return &RemoteRecognizer{pub: pub, sessionID: sessionID, lang: lang}
}

// SetSupported records the capability the browser declared.
func (r *RemoteRecognizer) SetSupported(ok bool) { r.supported.Store(ok) }

func (r *RemoteRecognizer) Supported() bool { return r.supported.Load() }

func (r *RemoteRecognizer) Start() error {
	return sendControl(r.pub, r.sessionID, models.SpeechCommand{
		Action: models.ActionRecognitionStart,
		Lang:   r.lang,
	})
}

func (r *RemoteRecognizer) Stop() error {
	return sendControl(r.pub, r.sessionID, models.SpeechCommand{Action: models.ActionRecognitionStop})
}

// RemoteSynthesizer plays text through the browser's speech synthesis.
type RemoteSynthesizer struct {
	pub       Publisher
	sessionID uuid.UUID
	lang      string
	supported atomic.Bool
}

func NewRemoteSynthesizer(pub Publisher, sessionID uuid.UUID, lang string) *RemoteSynthesizer {
	return &RemoteSynthesizer{pub: pub, sessionID: sessionID, lang: lang}
}

func (s *RemoteSynthesizer) SetSupported(ok bool) { s.supported.Store(ok) }

func (s *RemoteSynthesizer) Supported() bool { return s.supported.Load() }

func (s *RemoteSynthesizer) Speak(id, text string) error {
	return sendControl(s.pub, s.sessionID, models.SpeechCommand{
		Action: models.ActionSynthesisSpeak,
		Lang:   s.lang,
		ID:     id,
		Text:   text,
	})
}

func (s *RemoteSynthesizer) Cancel() error {
	return sendControl(s.pub, s.sessionID, models.SpeechCommand{Action: models.ActionSynthesisCancel})
}
