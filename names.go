package main

import "sync"

// NameRegistry tracks the one-to-one mapping between a live connection
// and its claimed display name. Uniqueness is process-wide, not per
// room.
type NameRegistry struct {
	mu     sync.Mutex
	byConn map[string]string // connID -> name
	byName map[string]string // name -> connID
}

// NewNameRegistry creates an empty registry
func NewNameRegistry() *NameRegistry {
	return &NameRegistry{
		byConn: make(map[string]string),
		byName: make(map[string]string),
	}
}

// Claim binds name to connID. Returns false if the name is already
// held by a different live connection. Re-claiming your own name is a
// no-op success.
func (r *NameRegistry) Claim(connID, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if holder, ok := r.byName[name]; ok {
		return holder == connID
	}
	if old, ok := r.byConn[connID]; ok {
		delete(r.byName, old)
	}
	r.byConn[connID] = name
	r.byName[name] = connID
	return true
}

// Release drops the connection's name binding. Calling it for a
// connection with no binding is a no-op.
func (r *NameRegistry) Release(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name, ok := r.byConn[connID]
	if !ok {
		return
	}
	delete(r.byConn, connID)
	delete(r.byName, name)
}

// NameOf returns the name held by connID, if any
func (r *NameRegistry) NameOf(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name, ok := r.byConn[connID]
	return name, ok
}
