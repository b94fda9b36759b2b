package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"mestre7c-backend/internal/models"
)

const maxFrameBytes = 64 << 10

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// TokenParser resolves a session token to the session it names.
type TokenParser interface {
	ParseSessionToken(token string) (uuid.UUID, error)
}

// InboundHandler receives decoded client frames for a session.
type InboundHandler func(sessionID uuid.UUID, msg models.ClientMessage)

type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub fans server events out to a session's browser tabs. With a redis
// client, events travel through the session_updates:<id> channel so any
// instance can publish them.
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID][]*client
	redisClient *redis.Client
	tokens      TokenParser
	cancelFuncs map[uuid.UUID]context.CancelFunc
	inbound     InboundHandler
	log         zerolog.Logger
}

func NewHub(redisClient *redis.Client, tokens TokenParser, log zerolog.Logger) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID][]*client),
		redisClient: redisClient,
		tokens:      tokens,
		cancelFuncs: make(map[uuid.UUID]context.CancelFunc),
		log:         log,
	}
}

// OnMessage sets the handler for inbound frames. It must be called before
// the hub serves connections.
func (h *Hub) OnMessage(fn InboundHandler) {
	h.inbound = fn
}

func channelName(sessionID uuid.UUID) string {
	return "session_updates:" + sessionID.String()
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Authenticate via token query param
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sessionID, err := h.tokens.ParseSessionToken(tokenStr)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	c := &client{conn: conn}
	h.registerConnection(sessionID, c)

	go func() {
		defer h.unregisterConnection(sessionID, c)
		h.readLoop(sessionID, c)
	}()
}

func (h *Hub) readLoop(sessionID uuid.UUID, c *client) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg models.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.log.Debug().Err(err).Str("session_id", sessionID.String()).Msg("dropping malformed frame")
			continue
		}
		if h.inbound != nil {
			h.inbound(sessionID, msg)
		}
	}
}

func (h *Hub) registerConnection(sessionID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[sessionID] = append(h.connections[sessionID], c)

	// Start pub/sub subscription if this is the first connection for this session
	if len(h.connections[sessionID]) == 1 && h.redisClient != nil {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[sessionID] = cancel
		go h.subscribeToPubSub(ctx, sessionID)
	}

	h.log.Info().
		Str("session_id", sessionID.String()).
		Int("connections", len(h.connections[sessionID])).
		Msg("websocket connected")
}

func (h *Hub) unregisterConnection(sessionID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.conn.Close()

	conns := h.connections[sessionID]
	for i, existing := range conns {
		if existing == c {
			h.connections[sessionID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	// If no more connections, cancel pub/sub
	if len(h.connections[sessionID]) == 0 {
		delete(h.connections, sessionID)
		if cancel, ok := h.cancelFuncs[sessionID]; ok {
			cancel()
			delete(h.cancelFuncs, sessionID)
		}
	}

	h.log.Info().Str("session_id", sessionID.String()).Msg("websocket disconnected")
}

func (h *Hub) subscribeToPubSub(ctx context.Context, sessionID uuid.UUID) {
	pubsub := h.redisClient.Subscribe(ctx, channelName(sessionID))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(sessionID, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(sessionID uuid.UUID, data []byte) {
	h.mu.RLock()
	conns := append([]*client(nil), h.connections[sessionID]...)
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.write(data); err != nil {
			h.log.Debug().Err(err).Str("session_id", sessionID.String()).Msg("websocket write failed")
		}
	}
}

// Publish delivers msg to every connection of the session.
func (h *Hub) Publish(ctx context.Context, sessionID uuid.UUID, msg models.WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", msg.Type, err)
	}

	if h.redisClient != nil {
		if err := h.redisClient.Publish(ctx, channelName(sessionID), data).Err(); err != nil {
			return fmt.Errorf("failed to publish %s event: %w", msg.Type, err)
		}
		return nil
	}

	h.broadcast(sessionID, data)
	return nil
}

// Connected reports whether the session has at least one open connection.
func (h *Hub) Connected(sessionID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[sessionID]) > 0
}

// Disconnect closes every connection of the session. The read loops then
// unregister them.
func (h *Hub) Disconnect(sessionID uuid.UUID) {
	h.mu.RLock()
	conns := append([]*client(nil), h.connections[sessionID]...)
	h.mu.RUnlock()

	for _, c := range conns {
		c.conn.Close()
	}
}
