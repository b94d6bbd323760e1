package main

import (
	"errors"
	"log"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

const MaxPlayersPerRoom = 4

// Join rejection reasons. Reported back to the joining connection as a
// join_error payload; none of them mutate shared state.
var (
	ErrMissingFields   = errors.New("room, passcode, and username required")
	ErrInvalidPasscode = errors.New("invalid passcode")
	ErrRoomFull        = errors.New("room is full")
	ErrNameTaken       = errors.New("username already in use")
)

// Sender delivers messages to one connection. Satisfied by *Client and
// mocked in tests.
type Sender interface {
	SendJSON(msg interface{})
	SendBinary(data []byte)
}

// Room is an isolated game session: its players in join order, its
// ball, and its score table. All mutation happens under mu, so intent,
// membership, and tick steps are mutually exclusive in time.
type Room struct {
	Name     string
	Passcode string

	mu      sync.Mutex
	players map[string]*Player
	order   []string // join order; index is the goal slot (0=top, 1=bottom, 2=left, 3=right)
	clients map[string]Sender
	ball    *Ball
	scores  map[string]int
}

func newRoom(name, passcode string) *Room {
	return &Room{
		Name:     name,
		Passcode: passcode,
		players:  make(map[string]*Player),
		clients:  make(map[string]Sender),
		ball:     NewBall(),
		scores:   make(map[string]int),
	}
}

// PlayerCount returns the number of players in the room
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// SetDirection applies a movement intent to one player. Unknown
// connections are ignored.
func (r *Room) SetDirection(connID string, dx, dy float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.players[connID]; ok {
		p.SetDirection(dx, dy)
	}
}

// addPlayer inserts a player. Callers hold the store lock; capacity and
// name checks happen before this point.
func (r *Room) addPlayer(p *Player, sender Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players[p.ID] = p
	r.order = append(r.order, p.ID)
	r.clients[p.ID] = sender
	r.scores[p.ID] = 0
}

// removePlayer deletes a player and its score entry. Both deletions are
// remove-if-present; a connection that was never here is a no-op.
func (r *Room) removePlayer(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.players[connID]; !ok {
		return false
	}
	delete(r.players, connID)
	delete(r.clients, connID)
	delete(r.scores, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// PlayerInfo returns the display name and color of a member
func (r *Room) PlayerInfo(connID string) (username, color string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[connID]
	if !ok {
		return "", "", false
	}
	return p.Username, p.Color, true
}

// Snapshot captures the full room state for broadcast
func (r *Room) Snapshot() StateSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() StateSnapshot {
	snap := StateSnapshot{
		Room:    r.Name,
		Players: make([]PlayerState, 0, len(r.order)),
		Ball:    r.ball.ToState(),
		Scores:  make(map[string]int, len(r.scores)),
	}
	for _, id := range r.order {
		snap.Players = append(snap.Players, r.players[id].ToState())
	}
	for id, s := range r.scores {
		snap.Scores[id] = s
	}
	return snap
}

// BroadcastState pushes the current snapshot to every subscriber as a
// binary msgpack frame. Slow clients drop frames rather than blocking.
func (r *Room) BroadcastState() {
	r.mu.Lock()
	snap := r.snapshotLocked()
	senders := r.sendersLocked()
	r.mu.Unlock()

	data, err := msgpack.Marshal(snap)
	if err != nil {
		log.Printf("snapshot marshal error: %v", err)
		return
	}
	for _, s := range senders {
		s.SendBinary(data)
	}
}

// BroadcastJSON sends a JSON envelope to every subscriber
func (r *Room) BroadcastJSON(msg Envelope) {
	r.mu.Lock()
	senders := r.sendersLocked()
	r.mu.Unlock()
	for _, s := range senders {
		s.SendJSON(msg)
	}
}

func (r *Room) sendersLocked() []Sender {
	senders := make([]Sender, 0, len(r.clients))
	for _, s := range r.clients {
		senders = append(senders, s)
	}
	return senders
}

// RoomStore owns the in-memory room registry and the room lifecycle.
// Passcodes outlive membership (they live in the DB); live gameplay
// state does not.
type RoomStore struct {
	db       *DB
	names    *NameRegistry
	sessions *SessionIndex
	metrics  *Metrics

	// admitMu serializes the passcode lookup-then-persist sequence so
	// two concurrent creators cannot split-brain a room's passcode. DB
	// I/O never happens under mu, so the tick cannot stall on join.
	admitMu sync.Mutex
	mu      sync.RWMutex
	rooms   map[string]*Room
}

// NewRoomStore creates a store backed by the given passcode DB
func NewRoomStore(db *DB, names *NameRegistry, sessions *SessionIndex, metrics *Metrics) *RoomStore {
	return &RoomStore{
		db:       db,
		names:    names,
		sessions: sessions,
		metrics:  metrics,
		rooms:    make(map[string]*Room),
	}
}

// JoinOrCreate admits a connection into a room, creating or lazily
// rematerializing the room as needed. On success the player is spawned,
// the name claimed, and the session bound. On failure nothing changed.
func (s *RoomStore) JoinOrCreate(roomName, passcode, username, connID string, sender Sender) (*Room, *Player, error) {
	if roomName == "" || passcode == "" || username == "" {
		return nil, nil, ErrMissingFields
	}

	// Passcode admission happens before any mutation. First writer
	// wins; later attempts must match exactly.
	s.admitMu.Lock()
	stored, exists, err := s.db.LookupPasscode(roomName)
	if err != nil {
		s.admitMu.Unlock()
		return nil, nil, err
	}
	if !exists {
		if err := s.db.SavePasscode(roomName, passcode); err != nil {
			s.admitMu.Unlock()
			return nil, nil, err
		}
		stored = passcode
	}
	s.admitMu.Unlock()

	if stored != passcode {
		return nil, nil, ErrInvalidPasscode
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomName]
	created := false
	if !ok {
		room = newRoom(roomName, stored)
		s.rooms[roomName] = room
		created = true
	}

	reject := func(err error) (*Room, *Player, error) {
		if created {
			// A failed join never creates state
			delete(s.rooms, roomName)
		}
		return nil, nil, err
	}

	if room.PlayerCount() >= MaxPlayersPerRoom {
		return reject(ErrRoomFull)
	}
	if !s.names.Claim(connID, username) {
		return reject(ErrNameTaken)
	}

	// A connection occupies at most one room: admission here implicitly
	// ends any current membership, including a stale one in this room.
	if oldName, ok := s.sessions.RoomOf(connID); ok {
		if old, ok := s.rooms[oldName]; ok && old.removePlayer(connID) {
			if old != room && old.PlayerCount() == 0 {
				delete(s.rooms, oldName)
				s.metrics.RoomClosed(oldName)
			}
		}
	}

	player := NewPlayer(connID, username)
	room.addPlayer(player, sender)
	s.sessions.Bind(connID, roomName)
	if created {
		s.metrics.RoomOpened(roomName)
	}
	return room, player, nil
}

// Leave removes the connection's player from its room and releases its
// name. Safe to call for a connection with no room, and safe to call
// twice. Returns the room (so the caller can notify the remaining
// players) and the departed player's name.
func (s *RoomStore) Leave(connID string) (*Room, string, bool) {
	roomName, ok := s.sessions.RoomOf(connID)
	username, _ := s.names.NameOf(connID)
	s.sessions.Unbind(connID)
	s.names.Release(connID)
	if !ok {
		return nil, "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomName]
	if !ok {
		return nil, "", false
	}
	if !room.removePlayer(connID) {
		return nil, "", false
	}
	if room.PlayerCount() == 0 {
		delete(s.rooms, roomName)
		s.metrics.RoomClosed(roomName)
	}
	return room, username, true
}

// Get returns the in-memory room by name, if present
func (s *RoomStore) Get(name string) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[name]
	return room, ok
}

// Rooms returns a snapshot of all live rooms for the tick sweep
func (s *RoomStore) Rooms() []*Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

// RoomCount returns the number of live rooms
func (s *RoomStore) RoomCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
