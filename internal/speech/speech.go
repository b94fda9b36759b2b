// Package speech models the browser's speech recognition and synthesis as
// owned resources over small capability interfaces, so turn handling can
// start, stop and cancel them without a real browser.
package speech

import "errors"

// ErrUnsupported is returned when the runtime lacks the capability.
var ErrUnsupported = errors.New("speech capability not supported")

// Recognizer is a speech-to-text engine. Implementations deliver their
// events by calling the owning Listener's Handle methods, never from inside
// Start or Stop.
type Recognizer interface {
	Supported() bool
	Start() error
	Stop() error
}

// Synthesizer is a text-to-speech engine that plays one utterance at a time.
type Synthesizer interface {
	Supported() bool
	Speak(id, text string) error
	Cancel() error
}

// Notifier surfaces a non-fatal notice to the user.
type Notifier func(message string)

const (
	NoticeRecognitionUnsupported = "Reconhecimento de voz não é suportado neste navegador."
	NoticeSynthesisUnsupported   = "Leitura em voz alta não é suportada neste navegador."
	NoticeRecognitionNetwork     = "Falha de rede no reconhecimento de voz. Tente novamente."
	NoticeMicrophoneDenied       = "Permissão de microfone negada."
	NoticeMicrophoneMissing      = "Nenhum microfone foi encontrado."
	NoticeRecognitionFailed      = "O reconhecimento de voz foi interrompido."
)

// UnsupportedRecognizer is used when the client never declared recognition.
type UnsupportedRecognizer struct{}

func (UnsupportedRecognizer) Supported() bool { return false }
func (UnsupportedRecognizer) Start() error    { return ErrUnsupported }
func (UnsupportedRecognizer) Stop() error     { return nil }

// UnsupportedSynthesizer is used when the client never declared synthesis.
type UnsupportedSynthesizer struct{}

func (UnsupportedSynthesizer) Supported() bool             { return false }
func (UnsupportedSynthesizer) Speak(id, text string) error { return ErrUnsupported }
func (UnsupportedSynthesizer) Cancel() error               { return nil }
