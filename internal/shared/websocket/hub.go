package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/cristianortiz/farmbid/internal/shared/logger"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// Constants for WebSocket configuration
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Outbound buffer per client; a client that cannot drain this fast
	// gets dropped from its room.
	sendBufferSize = 32
)

// Client represents one observer connection subscribed to a single room
type Client struct {
	Hub *Hub
	// The websocket connection; nil in tests that exercise the hub directly.
	Conn *websocket.Conn
	// Buffered channel of outbound messages.
	Send chan []byte
	// RoomID is the auction this client observes.
	RoomID string
	// Unique identifier for the client
	ID string

	closeOnce sync.Once
}

// NewClient builds a client with its outbound buffer allocated
func NewClient(hub *Hub, conn *websocket.Conn, roomID, id string) *Client {
	return &Client{
		Hub:    hub,
		Conn:   conn,
		Send:   make(chan []byte, sendBufferSize),
		RoomID: roomID,
		ID:     id,
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.Send) })
}

// ClientMessage wraps a client and the raw payload it sent, consumed by
// module-specific handlers listening on the hub's inbound channel
type ClientMessage struct {
	Client *Client
	Data   []byte
}

// Hub keeps per-room observer sets and fans events out to them. Membership
// is a set, not a multiset: joining the same client twice is a no-op.
// Delivery goes to the set of observers joined at the moment of the call,
// nothing is buffered or replayed for late joiners.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}

	// Inbound carries messages read from clients to the module handlers
	Inbound chan *ClientMessage
}

func NewHub() *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		Inbound: make(chan *ClientMessage, 256),
	}
}

// Join adds a client to its room, creating the room on first join
func (h *Hub) Join(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[client.RoomID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[client.RoomID] = room
	}
	if _, joined := room[client]; joined {
		return
	}
	room[client] = struct{}{}
	log.Info("client joined room",
		zap.String("clientID", client.ID),
		zap.String("roomID", client.RoomID),
		zap.Int("roomSize", len(room)),
	)
}

// Leave removes a client from its room, dropping the room once empty
func (h *Hub) Leave(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[client.RoomID]
	if !ok {
		return
	}
	if _, joined := room[client]; !joined {
		return
	}
	delete(room, client)
	client.closeSend()
	log.Info("client left room",
		zap.String("clientID", client.ID),
		zap.String("roomID", client.RoomID),
		zap.Int("roomSize", len(room)),
	)
	if len(room) == 0 {
		delete(h.rooms, client.RoomID)
		log.Debug("room removed as empty", zap.String("roomID", client.RoomID))
	}
}

// RoomSize returns the number of observers currently joined to roomID
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Broadcast delivers data to every observer joined to roomID right now.
// A client whose buffer is full is dropped from the room rather than
// blocking delivery to the rest.
func (h *Hub) Broadcast(roomID string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[roomID]
	if !ok {
		return
	}
	for client := range room {
		select {
		case client.Send <- data:
		default:
			delete(room, client)
			client.closeSend()
			log.Warn("client too slow, dropped from room",
				zap.String("clientID", client.ID),
				zap.String("roomID", roomID),
			)
		}
	}
	if len(room) == 0 {
		delete(h.rooms, roomID)
	}
}

// SendTo delivers data to a single client only. Membership is checked under
// the lock: Send is only ever closed by Leave or Broadcast while holding it,
// so a client still present here cannot have its channel closed mid-send.
func (h *Hub) SendTo(client *Client, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, joined := h.rooms[client.RoomID][client]; !joined {
		log.Debug("client already left, message dropped",
			zap.String("clientID", client.ID),
			zap.String("roomID", client.RoomID),
		)
		return
	}
	select {
	case client.Send <- data:
	default:
		log.Warn("client send buffer full, message dropped",
			zap.String("clientID", client.ID),
			zap.String("roomID", client.RoomID),
		)
	}
}

// ReadPump reads messages from the client connection and forwards them to
// the hub's inbound channel. Runs in its own goroutine per client.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.Hub.Leave(c)
		c.Conn.Close()
		log.Debug("read pump stopped",
			zap.String("clientID", c.ID),
			zap.String("roomID", c.RoomID),
		)
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error("websocket read error",
					zap.String("clientID", c.ID),
					zap.String("roomID", c.RoomID),
					zap.Error(err),
				)
			}
			break
		}

		select {
		case c.Hub.Inbound <- &ClientMessage{Client: c, Data: message}:
		default:
			log.Error("hub inbound channel full, dropping message",
				zap.String("clientID", c.ID),
				zap.String("roomID", c.RoomID),
			)
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection and
// keeps the connection alive with periodic pings. The application ensures
// at most one writer per connection by writing only from this goroutine.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Hub.Leave(c)
		c.Conn.Close()
		log.Debug("write pump stopped",
			zap.String("clientID", c.ID),
			zap.String("roomID", c.RoomID),
		)
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.Conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return

		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				//the hub dropped this client
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error("websocket write error",
					zap.String("clientID", c.ID),
					zap.String("roomID", c.RoomID),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
