package main

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 50
)

// Client represents a WebSocket connection. The connection ID doubles
// as the player identity inside a room.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	connID     string
	remoteAddr string
	msgCount   int
	msgResetAt time.Time
}

// NewClient creates a new Client with a fresh connection ID
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		connID:     uuid.NewString(),
		remoteAddr: remoteAddr,
	}
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws error: %v", err)
			}
			break
		}

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			log.Printf("rate limit exceeded for %s, disconnecting", c.remoteAddr)
			break
		}

		c.handleMessage(message)
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// 0xFF prefix marks a binary frame (see SendBinary)
			var err error
			if len(message) > 0 && message[0] == 0xFF {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendJSON sends a JSON message to the client
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("marshal error: %v", err)
		return
	}
	c.sendRaw(data)
}

// SendBinary sends pre-marshaled bytes as a binary WebSocket message.
// Prefixes with a 0xFF marker byte so WritePump can distinguish from text.
func (c *Client) SendBinary(data []byte) {
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF
	copy(msg[1:], data)
	c.sendRaw(msg)
}

func (c *Client) sendRaw(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
		// Client too slow, drop message
	}
}

// handleMessage routes incoming messages (single-pass decode via InEnvelope)
func (c *Client) handleMessage(raw []byte) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("unmarshal error: %v", err)
		return
	}

	switch env.T {
	case MsgJoin:
		c.handleJoin(env.D)
	case MsgInput:
		c.handleInput(env.D)
	case MsgLeave:
		c.handleLeave()
	case MsgChat:
		c.handleChat(env.D)
	}
}

func (c *Client) handleJoin(data json.RawMessage) {
	var msg JoinMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		c.SendJSON(Envelope{T: MsgJoinError, Data: JoinErrorMsg{Error: ErrMissingFields.Error()}})
		return
	}
	// Passcode is opaque and compared exactly; only room and name are trimmed
	msg.Room = strings.TrimSpace(msg.Room)
	msg.Username = strings.TrimSpace(msg.Username)

	room, player, err := c.hub.store.JoinOrCreate(msg.Room, msg.Passcode, msg.Username, c.connID, c)
	if err != nil {
		c.SendJSON(Envelope{T: MsgJoinError, Data: JoinErrorMsg{Error: err.Error()}})
		return
	}

	c.SendJSON(Envelope{T: MsgInit, Data: InitMsg{
		ID:     c.connID,
		Width:  FieldWidth,
		Height: FieldHeight,
		Room:   room.Name,
	}})
	room.BroadcastJSON(Envelope{T: MsgSystem, Data: SystemMsg{
		Msg: fmt.Sprintf("%s joined room %s", player.Username, room.Name),
	}})
	room.BroadcastState()
}

// handleInput applies a movement intent. A payload that does not decode
// degrades to the zero vector instead of being rejected.
func (c *Client) handleInput(data json.RawMessage) {
	var msg InputMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		msg = InputMsg{}
	}

	roomName, ok := c.hub.sessions.RoomOf(c.connID)
	if !ok {
		return
	}
	room, ok := c.hub.store.Get(roomName)
	if !ok {
		return
	}
	room.SetDirection(c.connID, msg.DX, msg.DY)
}

func (c *Client) handleLeave() {
	room, username, ok := c.hub.store.Leave(c.connID)
	if !ok {
		return
	}
	c.SendJSON(Envelope{T: MsgLeftRoom})
	room.BroadcastState()
	room.BroadcastJSON(Envelope{T: MsgSystem, Data: SystemMsg{
		Msg: fmt.Sprintf("%s left %s", username, room.Name),
	}})
}

// handleChat relays a chat line to the sender's current room. Pure
// fan-out; no state changes.
func (c *Client) handleChat(data json.RawMessage) {
	var msg ChatMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	roomName, ok := c.hub.sessions.RoomOf(c.connID)
	if !ok {
		return
	}
	room, ok := c.hub.store.Get(roomName)
	if !ok {
		return
	}
	username, color, ok := room.PlayerInfo(c.connID)
	if !ok {
		return
	}
	room.BroadcastJSON(Envelope{T: MsgChat, Data: ChatRelayMsg{
		ID:       c.connID,
		Username: username,
		Color:    color,
		Text:     msg.Text,
	}})
}
