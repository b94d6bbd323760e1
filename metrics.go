package main

import (
	"log"
	"sync"
	"time"
)

// Operational event types. Game events (goals, kicks) are deliberately
// not tracked here.
const (
	EvtSessionStart = "session_start"
	EvtSessionEnd   = "session_end"
	EvtRoomCreated  = "room_created"
	EvtRoomClosed   = "room_closed"
)

// Metrics keeps live gauges and persists operational events with
// batched background writes. Enqueueing never blocks the game loop:
// when the queue is full the event is dropped.
type Metrics struct {
	db     *DB
	events chan MetricEvent
	stop   chan struct{}
	wg     sync.WaitGroup

	mu          sync.RWMutex
	connections int
	liveRooms   int
}

// NewMetrics creates and starts the metrics background writer
func NewMetrics(db *DB) *Metrics {
	m := &Metrics{
		db:     db,
		events: make(chan MetricEvent, 256),
		stop:   make(chan struct{}),
	}
	m.wg.Add(1)
	go m.writer()
	return m
}

// Track enqueues an event for async persistence (non-blocking)
func (m *Metrics) Track(evtType, connID, room string) {
	select {
	case m.events <- MetricEvent{
		Type:      evtType,
		ConnID:    connID,
		Room:      room,
		Timestamp: time.Now().UTC(),
	}:
	default:
		// Queue full — drop rather than stall a handler or the tick
	}
}

// ConnOpened records a new connection
func (m *Metrics) ConnOpened(connID string) {
	m.mu.Lock()
	m.connections++
	m.mu.Unlock()
	m.Track(EvtSessionStart, connID, "")
}

// ConnClosed records a dropped connection
func (m *Metrics) ConnClosed(connID string) {
	m.mu.Lock()
	m.connections--
	m.mu.Unlock()
	m.Track(EvtSessionEnd, connID, "")
}

// RoomOpened records a room materialization
func (m *Metrics) RoomOpened(name string) {
	m.mu.Lock()
	m.liveRooms++
	m.mu.Unlock()
	m.Track(EvtRoomCreated, "", name)
}

// RoomClosed records a room teardown
func (m *Metrics) RoomClosed(name string) {
	m.mu.Lock()
	m.liveRooms--
	m.mu.Unlock()
	m.Track(EvtRoomClosed, "", name)
}

// Live returns the current connection and room gauges
func (m *Metrics) Live() (connections, rooms int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connections, m.liveRooms
}

// Stop flushes pending events and shuts the writer down
func (m *Metrics) Stop() {
	close(m.stop)
	m.wg.Wait()
}

// writer batches events and writes them to the DB
func (m *Metrics) writer() {
	defer m.wg.Done()

	batch := make([]MetricEvent, 0, 64)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case evt := <-m.events:
			batch = append(batch, evt)
			if len(batch) >= 50 {
				m.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				m.flush(batch)
				batch = batch[:0]
			}
		case <-m.stop:
			// Drain whatever is still queued
			for {
				select {
				case evt := <-m.events:
					batch = append(batch, evt)
				default:
					m.flush(batch)
					return
				}
			}
		}
	}
}

func (m *Metrics) flush(batch []MetricEvent) {
	if m.db == nil || len(batch) == 0 {
		return
	}
	if err := m.db.InsertEvents(batch); err != nil {
		log.Printf("metrics: flush error: %v", err)
	}
}
