package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"mestre7c-backend/internal/middleware"
	"mestre7c-backend/internal/models"
)

const testSecret = "test-secret"

func testAuth() *middleware.JWTAuth {
	return middleware.NewJWTAuth(testSecret, time.Hour)
}

func signToken(t *testing.T, secret string, sessionID uuid.UUID) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"session_id": sessionID.String(),
		"exp":        time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return s
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

func waitConnected(t *testing.T, h *Hub, id uuid.UUID) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !h.Connected(id) {
		if time.Now().After(deadline) {
			t.Fatal("connection never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_RejectsMissingOrInvalidToken(t *testing.T) {
	h := NewHub(nil, testAuth(), zerolog.Nop())

	for _, target := range []string{"/ws", "/ws?token=garbage", "/ws?token=" + signToken(t, "other", uuid.New())} {
		rec := httptest.NewRecorder()
		h.HandleWebSocket(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", target, rec.Code)
		}
	}
}

func TestHub_PublishAndInbound(t *testing.T) {
	h := NewHub(nil, testAuth(), zerolog.Nop())
	received := make(chan models.ClientMessage, 1)
	h.OnMessage(func(id uuid.UUID, msg models.ClientMessage) { received <- msg })

	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer srv.Close()

	id := uuid.New()
	conn := dial(t, srv, signToken(t, testSecret, id))
	defer conn.Close()
	waitConnected(t, h, id)

	err := h.Publish(context.Background(), id, models.WSMessage{
		Type:    models.WSDraft,
		Payload: models.DraftEvent{Text: "toque o bordão"},
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var got struct {
		Type    string            `json:"type"`
		Payload models.DraftEvent `json:"payload"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Type != models.WSDraft || got.Payload.Text != "toque o bordão" {
		t.Fatalf("unexpected frame %s", data)
	}

	conn.WriteMessage(websocket.TextMessage, []byte("not json"))
	conn.WriteJSON(models.ClientMessage{
		Type:    models.WSSpeechResult,
		Payload: models.ClientPayload{Transcript: "baixaria", Final: true},
	})

	select {
	case msg := <-received:
		if msg.Type != models.WSSpeechResult || msg.Payload.Transcript != "baixaria" || !msg.Payload.Final {
			t.Fatalf("unexpected inbound %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("inbound handler never called")
	}
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	h := NewHub(nil, testAuth(), zerolog.Nop())
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer srv.Close()

	id := uuid.New()
	conn := dial(t, srv, signToken(t, testSecret, id))
	defer conn.Close()
	waitConnected(t, h, id)

	h.Disconnect(id)
	deadline := time.Now().Add(2 * time.Second)
	for h.Connected(id) {
		if time.Now().After(deadline) {
			t.Fatal("connection still registered after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_RedisFanOut(t *testing.T) {
	mr := miniredis.RunT(t)
	newClient := func() *redis.Client {
		c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { c.Close() })
		return c
	}

	// The socket lives on one instance, the event is published from another.
	subscriber := NewHub(newClient(), testAuth(), zerolog.Nop())
	publisher := NewHub(newClient(), testAuth(), zerolog.Nop())

	srv := httptest.NewServer(http.HandlerFunc(subscriber.HandleWebSocket))
	defer srv.Close()

	id := uuid.New()
	conn := dial(t, srv, signToken(t, testSecret, id))
	defer conn.Close()
	waitConnected(t, subscriber, id)

	channel := channelName(id)
	deadline := time.Now().Add(2 * time.Second)
	for mr.PubSubNumSub(channel)[channel] != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("no subscription on %s", channel)
		}
		time.Sleep(10 * time.Millisecond)
	}

	err := publisher.Publish(context.Background(), id, models.WSMessage{
		Type:    models.WSNotice,
		Payload: models.NoticeEvent{Message: "Microfone pronto"},
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !strings.Contains(string(data), "Microfone pronto") || !strings.Contains(string(data), models.WSNotice) {
		t.Fatalf("unexpected frame %s", data)
	}

	conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for mr.PubSubNumSub(channel)[channel] != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription kept after the last socket closed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

type capturePublisher struct {
	msgs []models.WSMessage
}

func (p *capturePublisher) Publish(ctx context.Context, id uuid.UUID, msg models.WSMessage) error {
	p.msgs = append(p.msgs, msg)
	return nil
}

func TestRemoteAdapters_SendControlCommands(t *testing.T) {
	pub := &capturePublisher{}
	id := uuid.New()

	rec := NewRemoteRecognizer(pub, id, "pt-BR")
	if rec.Supported() {
		t.Fatal("support must be declared by the browser first")
	}
	rec.SetSupported(true)
	rec.Start()
	rec.Stop()

	synth := NewRemoteSynthesizer(pub, id, "pt-BR")
	synth.Speak("m1", "Bordão forte")
	synth.Cancel()

	want := []string{
		models.ActionRecognitionStart,
		models.ActionRecognitionStop,
		models.ActionSynthesisSpeak,
		models.ActionSynthesisCancel,
	}
	if len(pub.msgs) != len(want) {
		t.Fatalf("expected %d commands, got %d", len(want), len(pub.msgs))
	}
	for i, msg := range pub.msgs {
		cmd := msg.Payload.(models.SpeechCommand)
		if msg.Type != models.WSSpeechControl || cmd.Action != want[i] {
			t.Errorf("command %d: got %s/%s", i, msg.Type, cmd.Action)
		}
	}
	if speak := pub.msgs[2].Payload.(models.SpeechCommand); speak.ID != "m1" || speak.Lang != "pt-BR" {
		t.Fatalf("unexpected speak command %+v", speak)
	}
}
