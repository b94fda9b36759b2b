package speech

import (
	"fmt"
	"strings"
	"sync"
)

// Draft receives finalised transcript fragments.
type Draft interface {
	AppendDraft(fragment string)
}

// RestartRecorder counts automatic recognizer restarts.
type RestartRecorder interface {
	RecognitionRestarted()
}

// Listener owns a Recognizer. The intent flag records whether the user
// wants to keep listening; end events restart the recognizer only while it
// is set.
type Listener struct {
	mu       sync.Mutex
	rec      Recognizer
	draft    Draft
	notify   Notifier
	restarts RestartRecorder
	intent   bool
}

func NewListener(rec Recognizer, draft Draft, notify Notifier, restarts RestartRecorder) *Listener {
	if notify == nil {
		notify = func(string) {}
	}
	return &Listener{rec: rec, draft: draft, notify: notify, restarts: restarts}
}

// Listening reports the user's intent to keep dictating.
func (l *Listener) Listening() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.intent
}

func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.intent {
		return nil
	}
	if !l.rec.Supported() {
		l.notify(NoticeRecognitionUnsupported)
		return ErrUnsupported
	}
	if err := l.rec.Start(); err != nil {
		return fmt.Errorf("failed to start recognizer: %w", err)
	}
	l.intent = true
	return nil
}

func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.intent {
		return
	}
	l.intent = false
	l.rec.Stop()
}

// Halt stops dictation before a new turn.
func (l *Listener) Halt() {
	l.Stop()
}

// Toggle flips listening and returns the new state.
func (l *Listener) Toggle() (bool, error) {
	if l.Listening() {
		l.Stop()
		return false, nil
	}
	if err := l.Start(); err != nil {
		return false, err
	}
	return true, nil
}

// HandleResult appends a finalised fragment to the draft. Interim results
// and results arriving after Stop are dropped.
func (l *Listener) HandleResult(transcript string, final bool) {
	transcript = strings.TrimSpace(transcript)
	if !final || transcript == "" {
		return
	}

	l.mu.Lock()
	listening := l.intent
	l.mu.Unlock()

	if listening {
		l.draft.AppendDraft(transcript)
	}
}

// HandleEnd restarts the recognizer when the stream ended on its own.
func (l *Listener) HandleEnd() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.intent {
		return
	}
	if err := l.rec.Start(); err != nil {
		l.intent = false
		l.notify(NoticeRecognitionFailed)
		return
	}
	if l.restarts != nil {
		l.restarts.RecognitionRestarted()
	}
}

// HandleError reacts to a recognizer error code. Transient codes are
// ignored; the end event that follows them triggers a restart.
func (l *Listener) HandleError(code string) {
	notice, persistent := persistentErrors[code]
	if !persistent {
		return
	}

	l.mu.Lock()
	wasListening := l.intent
	l.intent = false
	l.mu.Unlock()

	if wasListening {
		l.notify(notice)
	}
}

var persistentErrors = map[string]string{
	"network":             NoticeRecognitionNetwork,
	"not-allowed":         NoticeMicrophoneDenied,
	"service-not-allowed": NoticeMicrophoneDenied,
	"audio-capture":       NoticeMicrophoneMissing,
}
