package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/launchradar/launchradar/internal/interfaces"
	"github.com/launchradar/launchradar/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// Message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// CompanyUpdate carries freshly persisted records to stream clients.
type CompanyUpdate struct {
	Companies []models.SearchResult `json:"companies"`
	Count     int                   `json:"count"`
	LastID    string                `json:"last_id"`
	Timestamp time.Time             `json:"timestamp"`
}

// WebSocketHandler streams newly persisted company records to connected
// clients by polling the store's latest IDs on a fixed interval.
type WebSocketHandler struct {
	logger           arbor.ILogger
	store            interfaces.CompanyStore
	clients          map[*websocket.Conn]bool
	clientMutex      map[*websocket.Conn]*sync.Mutex
	mu               sync.RWMutex
	pollInterval     time.Duration
	lastID           string
	serverInstanceID string // Unique ID generated on startup - clients use to detect server restart
}

func NewWebSocketHandler(store interfaces.CompanyStore, logger arbor.ILogger) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:           logger,
		store:            store,
		clients:          make(map[*websocket.Conn]bool),
		clientMutex:      make(map[*websocket.Conn]*sync.Mutex),
		pollInterval:     5 * time.Second,
		serverInstanceID: uuid.New().String(),
	}

	logger.Info().Str("server_instance_id", h.serverInstanceID).Msg("WebSocket handler initialized")

	return h
}

// HandleWebSocket handles WebSocket connections
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = &sync.Mutex{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Msgf("WebSocket client connected (total: %d)", clientCount)

	h.sendHello(conn)

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		delete(h.clientMutex, conn)
		remaining := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Msgf("WebSocket client disconnected (remaining: %d)", remaining)
	}()

	// Read messages from client (keep connection alive)
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			break
		}
	}
}

// sendHello sends the server instance ID so clients can detect restarts
// and reset their cursor.
func (h *WebSocketHandler) sendHello(conn *websocket.Conn) {
	msg := WSMessage{
		Type: "hello",
		Payload: map[string]string{
			"server_instance_id": h.serverInstanceID,
		},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal hello message")
		return
	}

	h.mu.RLock()
	mutex := h.clientMutex[conn]
	h.mu.RUnlock()

	if mutex != nil {
		mutex.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutex.Unlock()

		if err != nil {
			h.logger.Warn().Err(err).Msg("Failed to send hello")
		}
	}
}

// StartStreamer polls the store for records inserted since the last poll
// and broadcasts them to connected clients. Blocks until ctx is done.
func (h *WebSocketHandler) StartStreamer(ctx context.Context) {
	if h.store == nil {
		h.logger.Warn().Msg("WebSocket streamer disabled: no store configured")
		return
	}

	// Seed the cursor so existing rows are not replayed to the first client
	if rows, err := h.store.LatestRows(ctx, 1); err == nil && len(rows) > 0 {
		h.lastID = rows[0].ID
	}

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	h.logger.Info().Dur("interval", h.pollInterval).Msg("WebSocket streamer started")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Msg("WebSocket streamer stopped")
			return
		case <-ticker.C:
			h.pollOnce(ctx)
		}
	}
}

func (h *WebSocketHandler) pollOnce(ctx context.Context) {
	h.mu.RLock()
	clientCount := len(h.clients)
	h.mu.RUnlock()

	if clientCount == 0 {
		return
	}

	rows, err := h.store.LatestRows(ctx, 50)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket streamer poll failed")
		return
	}

	fresh := FilterAfterID(rows, h.lastID)
	if len(fresh) == 0 {
		return
	}
	h.lastID = fresh[len(fresh)-1].ID

	h.BroadcastCompanies(CompanyUpdate{
		Companies: fresh,
		Count:     len(fresh),
		LastID:    h.lastID,
		Timestamp: time.Now(),
	})
}

// BroadcastCompanies sends newly persisted records to all connected clients
func (h *WebSocketHandler) BroadcastCompanies(update CompanyUpdate) {
	msg := WSMessage{
		Type:    "companies",
		Payload: update,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal companies message")
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn := range h.clients {
		clients = append(clients, conn)
		mutexes = append(mutexes, h.clientMutex[conn])
	}
	h.mu.RUnlock()

	for i, conn := range clients {
		mutex := mutexes[i]
		mutex.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutex.Unlock()

		if err != nil {
			h.logger.Warn().Err(err).Msg("Failed to send companies to client")
		}
	}
}
