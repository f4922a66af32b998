package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Hub maintains owner_id -> set of connections and pushes booking activity
// to an owner's open dashboards. Uses Redis pub/sub for horizontal scaling:
// local broadcast + publish to Redis.
type Hub struct {
	// ownerID -> map[clientID]*Client
	owners   map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per owner
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishOwnerEvent(ownerID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to owner channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeOwner(ownerID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	return &Hub{
		owners:   make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to its owner's channel. Starts the Redis
// subscription for this owner if it is their first connection.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.owners[c.OwnerID] == nil {
		h.owners[c.OwnerID] = make(map[string]*Client)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribeOwner(c.OwnerID, func(event string, payload []byte) {
				h.BroadcastToOwner(c.OwnerID, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[c.OwnerID] = cancel
			}
		}
	}
	h.owners[c.OwnerID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client connected", zap.String("client_id", c.ID), zap.String("owner_id", c.OwnerID.String()))
}

// Unregister removes a client. Cancels the Redis subscription when the
// owner's last connection leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.owners[c.OwnerID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.owners, c.OwnerID)
			if cancel, ok := h.subs[c.OwnerID]; ok {
				cancel()
				delete(h.subs, c.OwnerID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID), zap.String("owner_id", c.OwnerID.String()))
}

// BroadcastToOwner sends a message to all of an owner's connections (local only).
func (h *Hub) BroadcastToOwner(ownerID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	clients := h.owners[ownerID]
	h.mu.RUnlock()

	if clients == nil {
		return
	}
	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// BroadcastToOwnerAndPublish sends to local clients and publishes to Redis
// for other instances.
func (h *Hub) BroadcastToOwnerAndPublish(ownerID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.BroadcastToOwner(ownerID, event, payload)
	if h.redis != nil {
		_ = h.redis.PublishOwnerEvent(ownerID, event, data)
	}
}

// ConnectionCount returns the number of open connections for an owner.
func (h *Hub) ConnectionCount(ownerID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.owners[ownerID])
}
