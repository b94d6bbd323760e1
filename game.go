package main

import (
	"sync"
	"time"
)

const (
	TickRate     = 30 // physics ticks per second
	TickInterval = time.Second / TickRate
)

// Engine runs the fixed-rate physics and scoring loop. One goroutine
// sweeps every live room per tick; each room's step runs under that
// room's lock, so the tick never observes a half-applied join or
// intent.
type Engine struct {
	store   *RoomStore
	mu      sync.Mutex
	running bool
	stop    chan struct{}
}

// NewEngine creates an engine over the given room store
func NewEngine(store *RoomStore) *Engine {
	return &Engine{
		store: store,
		stop:  make(chan struct{}),
	}
}

// Run drives the tick loop until Stop. dt is wall-clock elapsed time,
// not the nominal period, so simulation speed survives scheduling
// jitter. A stalled process resumes with one oversized step; no
// clamping is applied.
func (e *Engine) Run() {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()

	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			if dt <= 0 {
				continue
			}
			e.step(dt)
		case <-e.stop:
			return
		}
	}
}

// Stop terminates the tick loop
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		e.running = false
		close(e.stop)
	}
}

// step advances every room, then broadcasts every room's snapshot
func (e *Engine) step(dt float64) {
	rooms := e.store.Rooms()
	for _, room := range rooms {
		room.Step(dt)
	}
	for _, room := range rooms {
		room.BroadcastState()
	}
}

// Step advances one room by dt: player integration, ball integration,
// player-ball collision, then goal detection.
func (r *Room) Step(dt float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.order {
		r.players[id].Integrate(dt)
	}
	r.ball.Integrate(dt)
	r.resolveCollisionLocked()
	r.resolveGoalsLocked()
}

// resolveCollisionLocked resolves at most one player-ball collision per
// tick. Players are scanned in join order and the first overlap wins,
// not the nearest. Each axis resolves independently: a stationary
// component reflects the ball, a moving component kicks it at an
// amplified copy of the player's velocity.
func (r *Room) resolveCollisionLocked() {
	for _, id := range r.order {
		p := r.players[id]
		if !r.ball.Touches(p) {
			continue
		}
		if p.VX == 0 {
			r.ball.VX = -r.ball.VX
		} else {
			r.ball.VX = p.VX * KickMultiplier
		}
		if p.VY == 0 {
			r.ball.VY = -r.ball.VY
		} else {
			r.ball.VY = p.VY * KickMultiplier
		}
		return
	}
}

// resolveGoalsLocked checks the four edges in fixed priority order —
// top, bottom, left, right. Edge ownership is positional: the slot in
// join order, regardless of where the player is standing. An edge with
// no assigned slot acts as a plain wall that reflects but never scores.
func (r *Room) resolveGoalsLocked() {
	b := r.ball
	switch {
	case b.Y-b.Radius <= 0:
		r.edgeCrossedLocked(0, &b.VY)
	case b.Y+b.Radius >= FieldHeight:
		r.edgeCrossedLocked(1, &b.VY)
	case b.X-b.Radius <= 0:
		r.edgeCrossedLocked(2, &b.VX)
	case b.X+b.Radius >= FieldWidth:
		r.edgeCrossedLocked(3, &b.VX)
	}
	b.X = Clamp(b.X, b.Radius, FieldWidth-b.Radius)
	b.Y = Clamp(b.Y, b.Radius, FieldHeight-b.Radius)
}

// edgeCrossedLocked credits the slot owner and recenters the ball, or
// reflects the crossing axis when the slot is unoccupied. Scoring
// supersedes reflection.
func (r *Room) edgeCrossedLocked(slot int, axisVel *float64) {
	if slot < len(r.order) {
		r.scores[r.order[slot]]++
		r.ball.Reset()
		return
	}
	*axisVel = -*axisVel
}
