package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"google.golang.org/api/option"

	"mestre7c-backend/internal/models"
)

// Circuit breaker settings for the Gemini upstream.
const (
	breakerMaxFailures uint32 = 5
	breakerTimeout            = 30 * time.Second
	breakerInterval           = 60 * time.Second
)

// GeminiGenerator implements Generator over the Gemini API. A client is
// created per call because every session may carry its own API key, and
// each key gets its own breaker so one exhausted quota never throttles
// other sessions.
type GeminiGenerator struct {
	model string
	log   zerolog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[string]
}

func NewGeminiGenerator(model string, log zerolog.Logger) *GeminiGenerator {
	return &GeminiGenerator{
		model:    model,
		log:      log,
		breakers: make(map[string]*gobreaker.CircuitBreaker[string]),
	}
}

// breakerFor returns the breaker guarding calls made with apiKey. Keys are
// held as fingerprints.
func (g *GeminiGenerator) breakerFor(apiKey string) *gobreaker.CircuitBreaker[string] {
	sum := sha256.Sum256([]byte(apiKey))
	fp := hex.EncodeToString(sum[:8])

	g.mu.Lock()
	defer g.mu.Unlock()

	if cb, ok := g.breakers[fp]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "gemini:" + g.model + ":" + fp,
		MaxRequests: 1,
		Interval:    breakerInterval,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
		IsSuccessful: upstreamHealthy,
	})
	g.breakers[fp] = cb
	return cb
}

// upstreamHealthy treats per-credential and per-answer failures as healthy
// responses, as well as calls abandoned by the caller. Only throttling and
// transport trouble count against the breaker.
func upstreamHealthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	switch Classify(err).Kind {
	case FailureReauthRequired, FailureEmptyResponse:
		return true
	default:
		return false
	}
}

func (g *GeminiGenerator) Generate(ctx context.Context, apiKey string, env Envelope) (string, error) {
	return g.breakerFor(apiKey).Execute(func() (string, error) {
		return g.generate(ctx, apiKey, env)
	})
}

func (g *GeminiGenerator) generate(ctx context.Context, apiKey string, env Envelope) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to create Gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(g.model)
	model.SetTemperature(env.Temperature)
	model.SetTopP(env.TopP)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(env.SystemInstruction)},
	}

	chat := model.StartChat()
	chat.History = toGeminiHistory(env.History)

	resp, err := chat.SendMessage(ctx, genai.Text(env.Utterance))
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			g.log.Warn().
				Int("candidate", i).
				Str("finish_reason", cand.FinishReason.String()).
				Msg("Gemini stopped early")
		}
	}

	return extractText(resp), nil
}

func toGeminiHistory(history []models.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		role := "user"
		if m.Role == models.RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Text)},
		})
	}
	return contents
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
