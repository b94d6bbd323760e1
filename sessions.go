package main

import "sync"

// SessionIndex maps a connection to the room it currently occupies.
// Single-valued: binding a connection that is already bound replaces
// the old entry. Only the room store's join/leave paths mutate it.
type SessionIndex struct {
	mu    sync.RWMutex
	rooms map[string]string // connID -> room name
}

// NewSessionIndex creates an empty index
func NewSessionIndex() *SessionIndex {
	return &SessionIndex{rooms: make(map[string]string)}
}

// Bind records that connID occupies roomName
func (s *SessionIndex) Bind(connID, roomName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[connID] = roomName
}

// Unbind removes the binding. Idempotent.
func (s *SessionIndex) Unbind(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, connID)
}

// RoomOf returns the room the connection occupies, if any
func (s *SessionIndex) RoomOf(connID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.rooms[connID]
	return name, ok
}
