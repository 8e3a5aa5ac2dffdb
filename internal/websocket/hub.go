package websocket

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"seolab-api/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type TokenVerifier interface {
	Verify(token string) (uuid.UUID, error)
}

// Hub streams job progress events from Redis pub/sub to websocket clients.
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID][]*websocket.Conn
	redisClient *redis.Client
	tokens      TokenVerifier
	logger      *zap.Logger
	cancelFuncs map[uuid.UUID]context.CancelFunc
}

func NewHub(redisClient *redis.Client, tokens TokenVerifier, logger *zap.Logger) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID][]*websocket.Conn),
		redisClient: redisClient,
		tokens:      tokens,
		logger:      logger,
		cancelFuncs: make(map[uuid.UUID]context.CancelFunc),
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	jobID, err := h.tokens.Verify(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.registerConnection(jobID, conn)

	go func() {
		defer h.unregisterConnection(jobID, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// Connections reports how many clients follow jobID.
func (h *Hub) Connections(jobID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[jobID])
}

func (h *Hub) registerConnection(jobID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[jobID] = append(h.connections[jobID], conn)

	// First follower starts the subscription
	if len(h.connections[jobID]) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[jobID] = cancel
		go h.subscribe(ctx, jobID)
	}

	h.logger.Debug("websocket connected", zap.String("job_id", jobID.String()), zap.Int("total", len(h.connections[jobID])))
}

func (h *Hub) unregisterConnection(jobID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn.Close()

	conns := h.connections[jobID]
	for i, c := range conns {
		if c == conn {
			h.connections[jobID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	if len(h.connections[jobID]) == 0 {
		delete(h.connections, jobID)
		if cancel, ok := h.cancelFuncs[jobID]; ok {
			cancel()
			delete(h.cancelFuncs, jobID)
		}
	}

	h.logger.Debug("websocket disconnected", zap.String("job_id", jobID.String()))
}

func (h *Hub) subscribe(ctx context.Context, jobID uuid.UUID) {
	pubsub := h.redisClient.Subscribe(ctx, services.JobChannel(jobID))
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
			h.broadcast(jobID, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(jobID uuid.UUID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conn := range h.connections[jobID] {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug("websocket write failed", zap.String("job_id", jobID.String()), zap.Error(err))
		}
	}
}

// Close ends every subscription and connection.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for jobID, conns := range h.connections {
		for _, c := range conns {
			c.Close()
		}
		delete(h.connections, jobID)
	}
	for jobID, cancel := range h.cancelFuncs {
		cancel()
		delete(h.cancelFuncs, jobID)
	}
}
