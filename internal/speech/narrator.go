package speech

import (
	"fmt"
	"sync"
)

// Narrator plays assistant messages aloud, one at a time.
type Narrator struct {
	mu      sync.Mutex
	synth   Synthesizer
	notify  Notifier
	current string
}

func NewNarrator(synth Synthesizer, notify Notifier) *Narrator {
	if notify == nil {
		notify = func(string) {}
	}
	return &Narrator{synth: synth, notify: notify}
}

// Speaking returns the id of the message being played, or "".
func (n *Narrator) Speaking() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Toggle stops id if it is playing, otherwise cancels whatever is playing
// and starts id. It returns whether id is playing afterwards.
func (n *Narrator) Toggle(id, text string) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.current != "" && n.current == id {
		n.synth.Cancel()
		n.current = ""
		return false, nil
	}
	if !n.synth.Supported() {
		n.notify(NoticeSynthesisUnsupported)
		return false, ErrUnsupported
	}
	if n.current != "" {
		n.synth.Cancel()
		n.current = ""
	}
	if err := n.synth.Speak(id, PrepareForSpeech(text)); err != nil {
		return false, fmt.Errorf("failed to start synthesis: %w", err)
	}
	n.current = id
	return true, nil
}

// Finished is reported by the synthesizer when playback of id ends.
func (n *Narrator) Finished(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == id {
		n.current = ""
	}
}

func (n *Narrator) Cancel() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == "" {
		return
	}
	n.synth.Cancel()
	n.current = ""
}

// Halt cancels playback before a new turn.
func (n *Narrator) Halt() {
	n.Cancel()
}
