package models

// WebSocket message types (server to client)
const (
	WSTurnState     = "turn_state"
	WSSpeechControl = "speech_control"
	WSDraft         = "draft"
	WSNotice        = "notice"
)

// WebSocket message types (client to server)
const (
	WSCapabilities   = "capabilities"
	WSSpeechResult   = "speech_result"
	WSSpeechEnd      = "speech_end"
	WSSpeechError    = "speech_error"
	WSSpeechFinished = "speech_finished"
)

// Speech control actions
const (
	ActionRecognitionStart = "recognition_start"
	ActionRecognitionStop  = "recognition_stop"
	ActionSynthesisSpeak   = "synthesis_speak"
	ActionSynthesisCancel  = "synthesis_cancel"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type TurnStateEvent struct {
	Status             TurnStatus `json:"status"`
	Error              string     `json:"error,omitempty"`
	CredentialRequired bool       `json:"credential_required,omitempty"`
}

type SpeechCommand struct {
	Action string `json:"action"`
	Lang   string `json:"lang,omitempty"`
	ID     string `json:"id,omitempty"`
	Text   string `json:"text,omitempty"`
}

type DraftEvent struct {
	Text string `json:"text"`
}

type NoticeEvent struct {
	Source  string `json:"source"`
	Message string `json:"message"`
}

// ClientMessage is an inbound websocket frame. Payload fields are shared
// across the client message types.
type ClientMessage struct {
	Type    string        `json:"type"`
	Payload ClientPayload `json:"payload"`
}

type ClientPayload struct {
	SpeechRecognition bool   `json:"speech_recognition,omitempty"`
	SpeechSynthesis   bool   `json:"speech_synthesis,omitempty"`
	Transcript        string `json:"transcript,omitempty"`
	Final             bool   `json:"final,omitempty"`
	Code              string `json:"code,omitempty"`
	ID                string `json:"id,omitempty"`
}
