package main

import (
	"fmt"
	"sync"
)

const (
	maxConnsPerIP = 5
	maxTotalConns = 1000
)

// Hub manages all connected clients and owns the shared services. The
// registries are explicit state passed by handle; nothing here is a
// package-level variable.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client

	// Connection limiting (mutex-protected, accessed from HTTP handlers)
	connMu     sync.Mutex
	ipConns    map[string]int
	totalConns int

	store    *RoomStore
	names    *NameRegistry
	sessions *SessionIndex
	metrics  *Metrics
	db       *DB
}

// NewHub creates a new Hub with its registries wired to the database
func NewHub(db *DB) *Hub {
	names := NewNameRegistry()
	sessions := NewSessionIndex()
	metrics := NewMetrics(db)
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		ipConns:    make(map[string]int),
		store:      NewRoomStore(db, names, sessions, metrics),
		names:      names,
		sessions:   sessions,
		metrics:    metrics,
		db:         db,
	}
}

func (h *Hub) CanAccept(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.totalConns >= maxTotalConns {
		return false
	}
	if h.ipConns[ip] >= maxConnsPerIP {
		return false
	}
	return true
}

func (h *Hub) TrackConnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]++
	h.totalConns++
}

func (h *Hub) TrackDisconnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// Run processes register/unregister events
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.metrics.ConnOpened(client.connID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.metrics.ConnClosed(client.connID)
			h.dropFromRoom(client)
		}
	}
}

// dropFromRoom removes a disconnected client from its room and tells
// the remaining players. Tolerant of clients that never joined or
// already left.
func (h *Hub) dropFromRoom(client *Client) {
	room, _, ok := h.store.Leave(client.connID)
	if !ok {
		return
	}
	room.BroadcastState()
	room.BroadcastJSON(Envelope{T: MsgSystem, Data: SystemMsg{
		Msg: fmt.Sprintf("Player left %s", room.Name),
	}})
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TotalConns returns the tracked connection count
func (h *Hub) TotalConns() int {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return h.totalConns
}
