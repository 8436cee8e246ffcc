// Package hub fans live trip progress out to websocket subscribers.
package hub

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"waka/internal/domain"
)

// ProgressUpdate is one progress snapshot pushed to subscribers of a
// trip.
type ProgressUpdate struct {
	TripID              string              `json:"trip_id"`
	Status              string              `json:"status"`
	CurrentLegIndex     int                 `json:"current_leg_index"`
	DistanceToWaypointM float64             `json:"distance_to_next_waypoint_m"`
	EstimatedArrival    time.Time           `json:"estimated_arrival"`
	TripCompleted       bool                `json:"trip_completed"`
	Alerts              []domain.AlertEvent `json:"alerts,omitempty"`
}

// Client is one websocket subscriber, bound to a single trip.
type Client struct {
	ID     string
	TripID string
	Send   chan []byte
}

// NewClient creates a client subscribed to the given trip.
func NewClient(id, tripID string, bufferSize int) *Client {
	return &Client{
		ID:     id,
		TripID: tripID,
		Send:   make(chan []byte, bufferSize),
	}
}

// Hub routes progress updates to the clients watching each trip.
// Slow clients have messages dropped rather than blocking the
// broadcast path.
type Hub struct {
	mu          sync.RWMutex
	clients     map[*Client]struct{}
	tripClients map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan ProgressUpdate
}

// NewHub creates a new Hub. Run must be called for it to do anything.
func NewHub() *Hub {
	return &Hub{
		clients:     make(map[*Client]struct{}),
		tripClients: make(map[string]map[*Client]struct{}),
		register:    make(chan *Client, 16),
		unregister:  make(chan *Client, 16),
		broadcast:   make(chan ProgressUpdate, 256),
	}
}

// Run processes registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case update := <-h.broadcast:
			h.fanout(update)
		}
	}
}

// Broadcast queues an update for delivery. Drops the update when the
// broadcast buffer is full; the next fix supersedes it anyway.
func (h *Hub) Broadcast(update ProgressUpdate) {
	select {
	case h.broadcast <- update:
	default:
		log.Printf("progress broadcast buffer full, dropping update for trip %s", update.TripID)
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub and closes its channel.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = struct{}{}
	if h.tripClients[client.TripID] == nil {
		h.tripClients[client.TripID] = make(map[*Client]struct{})
	}
	h.tripClients[client.TripID][client] = struct{}{}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}

	if h.tripClients[client.TripID] != nil {
		delete(h.tripClients[client.TripID], client)
		if len(h.tripClients[client.TripID]) == 0 {
			delete(h.tripClients, client.TripID)
		}
	}

	delete(h.clients, client)
	close(client.Send)
}

func (h *Hub) fanout(update ProgressUpdate) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.tripClients[update.TripID]
	if !ok {
		return
	}

	data, err := json.Marshal(update)
	if err != nil {
		return
	}

	for client := range clients {
		select {
		case client.Send <- data:
		default:
			// Slow client: drop this update for it.
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.Send)
	}
	h.clients = make(map[*Client]struct{})
	h.tripClients = make(map[string]map[*Client]struct{})
}
