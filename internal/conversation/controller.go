package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mestre7c-backend/internal/models"
	"mestre7c-backend/internal/services"
)

// Pipeline produces the assistant reply for one utterance.
type Pipeline interface {
	RequestInsight(ctx context.Context, apiKey, utterance string, history []models.Message) (string, error)
}

// Credentials is the session's credential slot. Revoke drops apiKey only
// if it is still the linked key.
type Credentials interface {
	APIKey(ctx context.Context) (string, error)
	Revoke(ctx context.Context, apiKey string) error
}

// Halter is a speech activity that must stop before a turn starts.
type Halter interface {
	Halt()
}

// Observer is told about state changes the browser should render.
type Observer interface {
	TurnStateChanged(ev models.TurnStateEvent)
	DraftChanged(text string)
}

// Recorder receives turn metrics.
type Recorder interface {
	ObserveTurn(outcome string)
	CredentialReset()
}

// Clipboard receives copied message text.
type Clipboard interface {
	Write(ctx context.Context, text string) error
}

// ErrCredentialRequired means no API key is linked to the session.
var ErrCredentialRequired = errors.New("credential required")

const (
	msgBusy      = "Aguarde o Mestre terminar a resposta anterior."
	msgDiscarded = "A conversa foi reiniciada antes da resposta chegar."
)

// TurnResult is a committed turn.
type TurnResult struct {
	Question models.Message
	Reply    models.Message
}

// TurnError is a failed, rolled-back turn. Input holds the restored
// utterance.
type TurnError struct {
	Err                *services.InsightError
	Input              string
	CredentialRequired bool
}

func (e *TurnError) Error() string { return "turn failed: " + e.Err.Error() }

func (e *TurnError) Unwrap() error { return e.Err }

type Options struct {
	Window   int
	Observer Observer
	Recorder Recorder
	Logger   zerolog.Logger
}

// Controller owns one session's conversation and runs its turns one at a
// time.
type Controller struct {
	mu         sync.Mutex
	store      *Store
	pipeline   Pipeline
	creds      Credentials
	window     int
	observer   Observer
	recorder   Recorder
	log        zerolog.Logger
	halters    []Halter
	busy       bool
	lastError  string
	draft      string
	generation uint64
}

func NewController(pipeline Pipeline, creds Credentials, opts Options) *Controller {
	c := &Controller{
		store:    NewStore(),
		pipeline: pipeline,
		creds:    creds,
		window:   opts.Window,
		observer: opts.Observer,
		recorder: opts.Recorder,
		log:      opts.Logger,
	}
	if c.observer == nil {
		c.observer = nopObserver{}
	}
	if c.recorder == nil {
		c.recorder = nopRecorder{}
	}
	return c
}

// AttachSpeech registers activities halted before each submission.
func (c *Controller) AttachSpeech(halters ...Halter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.halters = append(c.halters, halters...)
}

// Submit runs one turn: tentative append of the user message, one pipeline
// call, then commit or revert.
func (c *Controller) Submit(ctx context.Context, utterance string) (*TurnResult, error) {
	text := strings.TrimSpace(utterance)
	if text == "" {
		return nil, &services.ValidationError{Fields: map[string]string{"message": "Message is required"}}
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return nil, &services.ConflictError{Message: msgBusy}
	}
	c.busy = true
	halters := c.halters
	c.mu.Unlock()

	apiKey, err := c.creds.APIKey(ctx)
	if err != nil || apiKey == "" {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return nil, ErrCredentialRequired
	}

	for _, h := range halters {
		h.Halt()
	}

	c.mu.Lock()
	history := services.TrailingWindow(c.store.Messages(), c.window)
	question := c.store.Append(models.RoleUser, text)
	c.draft = ""
	c.lastError = ""
	generation := c.generation
	c.mu.Unlock()

	c.observer.DraftChanged("")
	c.observer.TurnStateChanged(models.TurnStateEvent{Status: models.TurnInFlight})

	reply, err := c.pipeline.RequestInsight(ctx, apiKey, text, history)

	c.mu.Lock()
	c.busy = false

	if generation != c.generation {
		c.mu.Unlock()
		c.recorder.ObserveTurn("discarded")
		c.observer.TurnStateChanged(models.TurnStateEvent{Status: models.TurnIdle})
		return nil, &services.ConflictError{Message: msgDiscarded}
	}

	if err != nil {
		c.store.Remove(question.ID)
		c.draft = text
		ie := services.Classify(err)
		c.lastError = ie.Message
		reauth := ie.Kind == services.FailureReauthRequired
		c.mu.Unlock()

		if reauth {
			if rerr := c.creds.Revoke(context.WithoutCancel(ctx), apiKey); rerr != nil {
				c.log.Error().Err(rerr).Msg("failed to reset credential")
			}
			c.recorder.CredentialReset()
		}

		c.recorder.ObserveTurn(string(ie.Kind))
		c.observer.DraftChanged(text)
		c.observer.TurnStateChanged(models.TurnStateEvent{
			Status:             models.TurnFailed,
			Error:              ie.Message,
			CredentialRequired: reauth,
		})
		return nil, &TurnError{Err: ie, Input: text, CredentialRequired: reauth}
	}

	answer := c.store.Append(models.RoleAssistant, reply)
	c.mu.Unlock()

	c.recorder.ObserveTurn("ok")
	c.observer.TurnStateChanged(models.TurnStateEvent{Status: models.TurnIdle})
	return &TurnResult{Question: question, Reply: answer}, nil
}

// Clear empties the conversation and the surfaced error. A turn still in
// flight is discarded when it returns.
func (c *Controller) Clear() {
	c.mu.Lock()
	c.store.Clear()
	c.lastError = ""
	c.generation++
	busy := c.busy
	c.mu.Unlock()

	status := models.TurnIdle
	if busy {
		status = models.TurnInFlight
	}
	c.observer.TurnStateChanged(models.TurnStateEvent{Status: status})
}

// DismissError hides the surfaced error without touching messages.
func (c *Controller) DismissError() {
	c.mu.Lock()
	c.lastError = ""
	c.mu.Unlock()
}

// Copy writes the full text of message id to clip.
func (c *Controller) Copy(ctx context.Context, id uuid.UUID, clip Clipboard) error {
	m, ok := c.Message(id)
	if !ok {
		return &services.NotFoundError{Message: "Message not found"}
	}
	return clip.Write(ctx, m.Text)
}

func (c *Controller) Message(id uuid.UUID) (models.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Get(id)
}

func (c *Controller) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Messages()
}

func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// AppendDraft adds a dictated fragment, separated by a space.
func (c *Controller) AppendDraft(fragment string) {
	c.mu.Lock()
	if c.draft == "" {
		c.draft = fragment
	} else {
		c.draft += " " + fragment
	}
	draft := c.draft
	c.mu.Unlock()

	c.observer.DraftChanged(draft)
}

// SetDraft replaces the typed input and tells every open tab.
func (c *Controller) SetDraft(text string) {
	c.mu.Lock()
	changed := c.draft != text
	c.draft = text
	c.mu.Unlock()

	if changed {
		c.observer.DraftChanged(text)
	}
}

func (c *Controller) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Snapshot returns the conversation part of the session view.
func (c *Controller) Snapshot() models.ConversationView {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := models.TurnIdle
	switch {
	case c.busy:
		status = models.TurnInFlight
	case c.lastError != "":
		status = models.TurnFailed
	}

	return models.ConversationView{
		Messages: c.store.Messages(),
		Status:   status,
		Error:    c.lastError,
		Draft:    c.draft,
	}
}

type nopObserver struct{}

func (nopObserver) TurnStateChanged(models.TurnStateEvent) {}
func (nopObserver) DraftChanged(string)                    {}

type nopRecorder struct{}

func (nopRecorder) ObserveTurn(string) {}
func (nopRecorder) CredentialReset()   {}
