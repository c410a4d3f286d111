package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/mediaflow/api/internal/model"
)

// Client is a websocket subscriber of one job.
type Client struct {
	JobID string
	Conn  *websocket.Conn
	Send  chan []byte
}

// Hub fans job envelopes out to subscribers, grouped by job ID.
type Hub struct {
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	mu sync.RWMutex
}

// BroadcastMessage is a payload for every subscriber of a job.
type BroadcastMessage struct {
	JobID   string
	Message []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.JobID] == nil {
				h.clients[client.JobID] = make(map[*Client]bool)
			}
			h.clients[client.JobID][client] = true
			h.mu.Unlock()
			log.Printf("Client registered for job %s", client.JobID)

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.JobID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.clients, client.JobID)
					}
				}
			}
			h.mu.Unlock()
			log.Printf("Client unregistered from job %s", client.JobID)

		case msg := <-h.broadcast:
			h.mu.Lock()
			if clients, ok := h.clients[msg.JobID]; ok {
				for client := range clients {
					select {
					case client.Send <- msg.Message:
					default:
						close(client.Send)
						delete(clients, client)
					}
				}
				if len(clients) == 0 {
					delete(h.clients, msg.JobID)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribers returns how many clients watch jobID.
func (h *Hub) Subscribers(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[jobID])
}

// send queues data for a client still registered with the hub. Send channels
// are only closed under the write lock, so holding the read lock makes the
// send safe.
func (h *Hub) send(client *Client, data []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[client.JobID][client] {
		return false
	}
	select {
	case client.Send <- data:
		return true
	default:
		return false
	}
}

// BroadcastEnvelope pushes the final envelope of a job to its subscribers.
// It never blocks the caller; a full broadcast buffer drops the message.
func (h *Hub) BroadcastEnvelope(env *model.Envelope) {
	msgType := model.WSMessageTypeComplete
	if env.Code != 200 {
		msgType = model.WSMessageTypeError
	}

	data, err := json.Marshal(model.WSJobMessage{
		Type:     msgType,
		JobID:    env.JobID,
		Envelope: env,
	})
	if err != nil {
		log.Printf("Failed to marshal job message: %v", err)
		return
	}

	select {
	case h.broadcast <- &BroadcastMessage{JobID: env.JobID, Message: data}:
	default:
		log.Printf("Broadcast buffer full, dropping message for job %s", env.JobID)
	}
}

// HandleConnection handles a WebSocket connection
func (h *Hub) HandleConnection(c *websocket.Conn, jobID string) {
	client := &Client{
		JobID: jobID,
		Conn:  c,
		Send:  make(chan []byte, 16),
	}

	h.Register(client)
	defer h.Unregister(client)

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					_ = c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Type == model.WSMessageTypePing {
			pong, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
			h.send(client, pong)
		}
	}
}
