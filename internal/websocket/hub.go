package websocket

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"tapplay-backend/internal/logging"
	"tapplay-backend/internal/services"
)

const writeWait = 10 * time.Second

type tokenParser interface {
	ParseToken(tokenStr string) (uuid.UUID, error)
}

// updateSource streams raw feed payloads published for one guardian.
type updateSource interface {
	Updates(ctx context.Context, userID uuid.UUID) <-chan string
}

// client serializes writes; gorilla connections allow one concurrent writer.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub fans a guardian's activity feed out to every socket they have open.
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID][]*client
	cancelFuncs map[uuid.UUID]context.CancelFunc
	tokens      tokenParser
	updates     updateSource
	upgrader    websocket.Upgrader
}

// NewHub accepts sockets from allowedOrigin only. An empty origin allows any.
func NewHub(updates updateSource, tokens tokenParser, allowedOrigin string) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID][]*client),
		cancelFuncs: make(map[uuid.UUID]context.CancelFunc),
		tokens:      tokens,
		updates:     updates,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "" || origin == "" || strings.EqualFold(origin, allowedOrigin)
			},
		},
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Browsers cannot set headers on the upgrade request, so the token rides in the query.
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	userID, err := h.tokens.ParseToken(tokenStr)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c := &client{conn: conn}
	h.registerConnection(userID, c)

	go func() {
		defer h.unregisterConnection(userID, c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (h *Hub) registerConnection(userID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[userID] = append(h.connections[userID], c)

	// First socket for this guardian starts the feed subscription
	if len(h.connections[userID]) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[userID] = cancel
		go h.forward(ctx, userID)
	}

	logging.Info().Str("user_id", userID.String()).Int("connections", len(h.connections[userID])).Msg("WebSocket connected")
}

func (h *Hub) unregisterConnection(userID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.conn.Close()

	conns := h.connections[userID]
	for i, existing := range conns {
		if existing == c {
			h.connections[userID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	if len(h.connections[userID]) == 0 {
		delete(h.connections, userID)
		if cancel, ok := h.cancelFuncs[userID]; ok {
			cancel()
			delete(h.cancelFuncs, userID)
		}
	}

	logging.Info().Str("user_id", userID.String()).Msg("WebSocket disconnected")
}

func (h *Hub) forward(ctx context.Context, userID uuid.UUID) {
	ch := h.updates.Updates(ctx, userID)
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(userID, []byte(payload))
		}
	}
}

func (h *Hub) broadcast(userID uuid.UUID, data []byte) {
	h.mu.RLock()
	clients := append([]*client(nil), h.connections[userID]...)
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(data); err != nil {
			logging.Debug().Err(err).Str("user_id", userID.String()).Msg("WebSocket write failed")
		}
	}
}

// Shutdown closes every open socket. Reader goroutines then unregister them.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, clients := range h.connections {
		for _, c := range clients {
			c.mu.Lock()
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			c.mu.Unlock()
			c.conn.Close()
		}
	}
}

// RedisUpdates reads the per-guardian pub/sub channel written by services.RedisPublisher.
type RedisUpdates struct {
	redis *redis.Client
}

func NewRedisUpdates(redisClient *redis.Client) *RedisUpdates {
	return &RedisUpdates{redis: redisClient}
}

func (u *RedisUpdates) Updates(ctx context.Context, userID uuid.UUID) <-chan string {
	out := make(chan string)
	pubsub := u.redis.Subscribe(ctx, services.UserChannel(userID))

	go func() {
		defer close(out)
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
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
