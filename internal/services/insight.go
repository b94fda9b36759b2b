package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"mestre7c-backend/internal/models"
)

// Envelope is everything one generation call needs. It is built per call
// and never stored.
type Envelope struct {
	SystemInstruction string
	History           []models.Message
	Utterance         string
	Temperature       float32
	TopP              float32
}

// Generator submits one envelope to a text-generation backend.
type Generator interface {
	Generate(ctx context.Context, apiKey string, env Envelope) (string, error)
}

// GenerationRecorder receives generation metrics.
type GenerationRecorder interface {
	GenerationStarted()
	ObserveGeneration(outcome string, d time.Duration)
}

type InsightOptions struct {
	Window      int
	Temperature float64
	TopP        float64
	Timeout     time.Duration
}

// InsightService answers musical-technique questions in character.
type InsightService struct {
	generator   Generator
	window      int
	temperature float32
	topP        float32
	timeout     time.Duration
	recorder    GenerationRecorder
	log         zerolog.Logger
}

var errMissingCredential = errors.New("no API key configured")

func NewInsightService(generator Generator, opts InsightOptions, recorder GenerationRecorder, log zerolog.Logger) *InsightService {
	return &InsightService{
		generator:   generator,
		window:      opts.Window,
		temperature: float32(opts.Temperature),
		topP:        float32(opts.TopP),
		timeout:     opts.Timeout,
		recorder:    recorder,
		log:         log,
	}
}

// Window is the number of prior messages sent with each request.
func (s *InsightService) Window() int {
	return s.window
}

// RequestInsight sends utterance with the trailing window of history and
// returns the generated text or an *InsightError.
func (s *InsightService) RequestInsight(ctx context.Context, apiKey, utterance string, history []models.Message) (string, error) {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return "", &ValidationError{Fields: map[string]string{"message": "Message is required"}}
	}

	if apiKey == "" {
		ie := newInsightError(FailureReauthRequired, errMissingCredential)
		ie.Message = MissingCredentialMessage
		return "", ie
	}

	env := Envelope{
		SystemInstruction: SystemPrompt,
		History:           TrailingWindow(history, s.window),
		Utterance:         utterance,
		Temperature:       s.temperature,
		TopP:              s.topP,
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	s.recorder.GenerationStarted()

	text, err := s.generator.Generate(ctx, apiKey, env)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyResponse
	}

	if err != nil {
		ie := Classify(err)
		s.recorder.ObserveGeneration(string(ie.Kind), time.Since(start))
		s.log.Warn().
			Err(err).
			Str("kind", string(ie.Kind)).
			Int("history", len(env.History)).
			Dur("duration", time.Since(start)).
			Msg("generation failed")
		return "", ie
	}

	s.recorder.ObserveGeneration("ok", time.Since(start))
	s.log.Debug().
		Int("history", len(env.History)).
		Int("reply_chars", len(text)).
		Dur("duration", time.Since(start)).
		Msg("generation completed")

	return text, nil
}

// TrailingWindow returns at most n of the most recent messages. A leading
// assistant message is dropped so the window opens on a user turn.
func TrailingWindow(messages []models.Message, n int) []models.Message {
	if n <= 0 || len(messages) == 0 {
		return nil
	}

	start := len(messages) - n
	if start < 0 {
		start = 0
	}
	window := messages[start:]
	for len(window) > 0 && window[0].Role == models.RoleAssistant {
		window = window[1:]
	}

	out := make([]models.Message, len(window))
	copy(out, window)
	return out
}
