package models

import (
	"time"

	"github.com/google/uuid"
)

// Role tags the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single message in a conversation. Messages are
// never mutated once appended.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// TurnStatus is the per-session request state.
type TurnStatus string

const (
	TurnIdle     TurnStatus = "idle"
	TurnInFlight TurnStatus = "in_flight"
	TurnFailed   TurnStatus = "failed"
)

// ChatRequest is the payload sent to the turns endpoint.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is returned after a successful turn.
type ChatResponse struct {
	Reply    Message `json:"reply"`
	Question Message `json:"question"`
}

// TurnFailure is returned when a turn fails and was rolled back.
type TurnFailure struct {
	Error              APIError `json:"error"`
	Input              string   `json:"input"`
	CredentialRequired bool     `json:"credential_required"`
}

// ConversationView is the full state of a session's chat.
type ConversationView struct {
	Messages      []Message  `json:"messages"`
	Status        TurnStatus `json:"status"`
	Error         string     `json:"error,omitempty"`
	Draft         string     `json:"draft"`
	Listening     bool       `json:"listening"`
	SpeakingID    string     `json:"speaking_id,omitempty"`
	HasCredential bool       `json:"has_credential"`
}

// DraftRequest replaces the input draft.
type DraftRequest struct {
	Text string `json:"text"`
}

// CredentialRequest links a Gemini API key to the session.
type CredentialRequest struct {
	APIKey string `json:"api_key"`
}

// SessionResponse is returned when a session is created.
type SessionResponse struct {
	SessionID     uuid.UUID `json:"session_id"`
	Token         string    `json:"token"`
	ExpiresIn     int       `json:"expires_in"`
	HasCredential bool      `json:"has_credential"`
}

// QuickPrompt is a one-click question shown below the input bar.
type QuickPrompt struct {
	Label  string `json:"label"`
	Prompt string `json:"prompt"`
}

// AppInfo describes the static chrome of the chat page.
type AppInfo struct {
	Name             string        `json:"name"`
	QuickPrompts     []QuickPrompt `json:"quick_prompts"`
	TickerFragments  []string      `json:"ticker_fragments"`
	TickerIntervalMS int           `json:"ticker_interval_ms"`
	ReferralURL      string        `json:"referral_url"`
	CredentialURL    string        `json:"credential_url"`
	RecognitionLang  string        `json:"recognition_lang"`
}

// CredentialStatus reports whether the session has a linked key.
type CredentialStatus struct {
	HasCredential bool   `json:"has_credential"`
	CredentialURL string `json:"credential_url"`
}

// CopyResponse carries a message's full text for the clipboard.
type CopyResponse struct {
	Text string `json:"text"`
}

// SpeechState is returned by the listen and speak toggles.
type SpeechState struct {
	Listening  bool   `json:"listening"`
	SpeakingID string `json:"speaking_id,omitempty"`
}

// PrepareRequest asks for the spoken rendition of a text.
type PrepareRequest struct {
	Text string `json:"text"`
}

type PrepareResponse struct {
	Text string `json:"text"`
}
