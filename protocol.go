package main

import "encoding/json"

// Client -> Server message types
const (
	MsgJoin  = "join"
	MsgInput = "input"
	MsgLeave = "leave"
	MsgChat  = "chat"
)

// Server -> Client message types
const (
	MsgInit      = "init"
	MsgJoinError = "join_error"
	MsgSystem    = "system"
	MsgState     = "state" // binary, msgpack-encoded StateSnapshot
	MsgLeftRoom  = "left_room"
)

// Envelope wraps all outgoing JSON messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages — json.RawMessage avoids double-unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// JoinMsg is sent by a client to enter (or create) a room
type JoinMsg struct {
	Room     string `json:"room"`
	Passcode string `json:"passcode"`
	Username string `json:"username"`
}

// InputMsg carries a raw movement direction. Not required to be
// normalized; the engine normalizes, and a malformed payload degrades
// to the zero vector.
type InputMsg struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// ChatMsg is the inbound chat payload
type ChatMsg struct {
	Text string `json:"text"`
}

// InitMsg is sent once to a client after a successful join
type InitMsg struct {
	ID     string  `json:"id"`
	Width  float64 `json:"w"`
	Height float64 `json:"h"`
	Room   string  `json:"room"`
}

// JoinErrorMsg reports a join rejection to the initiating client only
type JoinErrorMsg struct {
	Error string `json:"error"`
}

// SystemMsg is a room-wide announcement
type SystemMsg struct {
	Msg string `json:"msg"`
}

// ChatRelayMsg is the room-wide chat broadcast
type ChatRelayMsg struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Color    string `json:"color"`
	Text     string `json:"text"`
}

// PlayerState is one player's entry in a state snapshot
type PlayerState struct {
	ID       string  `json:"id" msgpack:"id"`
	Username string  `json:"username" msgpack:"n"`
	X        float64 `json:"x" msgpack:"x"`
	Y        float64 `json:"y" msgpack:"y"`
	VX       float64 `json:"vx" msgpack:"vx"`
	VY       float64 `json:"vy" msgpack:"vy"`
	R        float64 `json:"r" msgpack:"r"`
	Color    string  `json:"color" msgpack:"c"`
}

// BallState is the ball's entry in a state snapshot
type BallState struct {
	X  float64 `json:"x" msgpack:"x"`
	Y  float64 `json:"y" msgpack:"y"`
	VX float64 `json:"vx" msgpack:"vx"`
	VY float64 `json:"vy" msgpack:"vy"`
	R  float64 `json:"r" msgpack:"r"`
}

// StateSnapshot is the full room state, broadcast every tick and on
// membership change. Encoded with msgpack and sent as a binary frame.
type StateSnapshot struct {
	Room    string         `json:"room" msgpack:"room"`
	Players []PlayerState  `json:"players" msgpack:"p"`
	Ball    BallState      `json:"ball" msgpack:"b"`
	Scores  map[string]int `json:"scores" msgpack:"sc"`
}
