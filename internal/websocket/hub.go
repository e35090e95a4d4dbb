package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/makeasinger/midiconv/internal/model"
	"github.com/makeasinger/midiconv/internal/progress"
)

const clientBuffer = 64

// Client is one subscriber to a job's updates
type Client struct {
	JobID string
	Conn  *websocket.Conn
	Send  chan []byte

	mu     sync.Mutex
	closed bool
}

// NewClient creates a client with a bounded send buffer
func NewClient(jobID string, conn *websocket.Conn) *Client {
	return &Client{JobID: jobID, Conn: conn, Send: make(chan []byte, clientBuffer)}
}

// enqueue never blocks. When the buffer is full the oldest message is
// dropped so a slow reader sees the latest progress.
func (c *Client) enqueue(msg []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for {
		select {
		case c.Send <- msg:
			return
		default:
		}
		select {
		case <-c.Send:
		default:
		}
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// Hub fans job updates out to WebSocket subscribers
type Hub struct {
	// Clients grouped by job ID
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	mu sync.RWMutex
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	JobID   string
	Message []byte
}

// NewHub creates a new Hub
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
					client.close()
					if len(clients) == 0 {
						delete(h.clients, client.JobID)
					}
				}
			}
			h.mu.Unlock()
			log.Printf("Client unregistered from job %s", client.JobID)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients[msg.JobID] {
				client.enqueue(msg.Message)
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a new client
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribers returns the number of clients watching jobID
func (h *Hub) Subscribers(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[jobID])
}

func (h *Hub) send(jobID string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("Failed to marshal websocket message: %v", err)
		return
	}
	select {
	case h.broadcast <- &BroadcastMessage{JobID: jobID, Message: data}:
	default:
		log.Printf("Broadcast queue full, dropping update for job %s", jobID)
	}
}

// Publish implements progress.Observer
func (h *Hub) Publish(u progress.Update) {
	h.send(u.JobID, model.JobEvent{
		Type:    model.EventProgress,
		JobID:   u.JobID,
		Percent: u.Percent,
		Stage:   u.Stage,
		Stem:    u.Stem,
	})
}

// BroadcastProgress sends a job-level progress update
func (h *Hub) BroadcastProgress(jobID string, percent int, status model.JobStatus, step string) {
	h.send(jobID, model.JobEvent{
		Type:    model.EventProgress,
		JobID:   jobID,
		Status:  status,
		Percent: percent,
		Stage:   step,
	})
}

// BroadcastComplete announces a finished stage
func (h *Hub) BroadcastComplete(jobID string, status model.JobStatus, result interface{}) {
	h.send(jobID, model.JobEvent{
		Type:    model.EventComplete,
		JobID:   jobID,
		Status:  status,
		Percent: 100,
		Result:  result,
	})
}

// BroadcastError announces a failed stage
func (h *Hub) BroadcastError(jobID, code, stage, message string) {
	h.send(jobID, model.JobEvent{
		Type:   model.EventError,
		JobID:  jobID,
		Status: model.JobStatusFailed,
		Error:  &model.EventErrorDetail{Code: code, Stage: stage, Message: message},
	})
}

// HandleConnection serves one WebSocket until the peer disconnects
func (h *Hub) HandleConnection(c *websocket.Conn, jobID string) {
	client := NewClient(jobID, c)

	h.Register(client)
	defer h.Unregister(client)

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
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

		var ev model.JobEvent
		if err := json.Unmarshal(message, &ev); err != nil {
			continue
		}
		if ev.Type == model.EventPing {
			data, _ := json.Marshal(model.JobEvent{Type: model.EventPong, JobID: jobID})
			client.enqueue(data)
		}
	}
}
