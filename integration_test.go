package main

import (
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// ---------- helpers ----------

// startTestServer spins up an httptest.Server with a Hub and a running
// engine, and returns the server, its WebSocket URL, and a cleanup func.
func startTestServer(t *testing.T) (*httptest.Server, string, func()) {
	t.Helper()

	tmpDir := t.TempDir()
	clientDir := filepath.Join(tmpDir, "client")
	os.MkdirAll(clientDir, 0o755)
	os.WriteFile(filepath.Join(clientDir, "index.html"), []byte("<html>test</html>"), 0o644)

	db, err := OpenDB(filepath.Join(tmpDir, "rooms.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	hub := NewHub(db)
	go hub.Run()
	engine := NewEngine(hub.store)
	go engine.Run()

	mux := SetupRoutes(hub, clientDir)
	srv := httptest.NewServer(mux)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	return srv, wsURL, func() {
		engine.Stop()
		srv.Close()
		hub.metrics.Stop()
		db.Close()
	}
}

// dialWS opens a WebSocket connection to the test server.
func dialWS(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial WS: %v", err)
	}
	return conn
}

// readEnvelope reads one message from the WebSocket. Binary frames are
// msgpack-encoded StateSnapshots and come back wrapped as MsgState.
func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read WS: %v", err)
	}
	if msgType == websocket.BinaryMessage {
		var snap StateSnapshot
		if err := msgpack.Unmarshal(raw, &snap); err != nil {
			t.Fatalf("msgpack unmarshal: %v", err)
		}
		return Envelope{T: MsgState, Data: snap}
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return env
}

// sendMsg sends a typed message over the WebSocket.
func sendMsg(t *testing.T, conn *websocket.Conn, msgType string, data interface{}) {
	t.Helper()
	env := Envelope{T: msgType, Data: data}
	raw, _ := json.Marshal(env)
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write WS: %v", err)
	}
}

// dataMap extracts the Data field as map[string]interface{}.
func dataMap(t *testing.T, env Envelope) map[string]interface{} {
	t.Helper()
	raw, _ := json.Marshal(env.Data)
	var m map[string]interface{}
	json.Unmarshal(raw, &m)
	return m
}

// waitForType reads messages (skipping state frames and anything else)
// until one of the wanted type arrives.
func waitForType(t *testing.T, conn *websocket.Conn, msgType string) Envelope {
	t.Helper()
	for i := 0; i < 200; i++ {
		env := readEnvelope(t, conn)
		if env.T == msgType {
			return env
		}
	}
	t.Fatalf("no %s message within 200 reads", msgType)
	return Envelope{}
}

// waitForState reads until a state snapshot satisfies pred.
func waitForState(t *testing.T, conn *websocket.Conn, pred func(StateSnapshot) bool) StateSnapshot {
	t.Helper()
	for i := 0; i < 200; i++ {
		env := readEnvelope(t, conn)
		if env.T != MsgState {
			continue
		}
		snap := env.Data.(StateSnapshot)
		if pred(snap) {
			return snap
		}
	}
	t.Fatal("no matching state snapshot within 200 reads")
	return StateSnapshot{}
}

// join performs a join and waits for the init message, returning the
// connection ID the server assigned.
func join(t *testing.T, conn *websocket.Conn, room, passcode, username string) string {
	t.Helper()
	sendMsg(t, conn, MsgJoin, JoinMsg{Room: room, Passcode: passcode, Username: username})
	env := waitForType(t, conn, MsgInit)
	d := dataMap(t, env)
	if d["room"] != room {
		t.Fatalf("init for wrong room: %v", d["room"])
	}
	if d["w"].(float64) != FieldWidth || d["h"].(float64) != FieldHeight {
		t.Fatalf("init carries wrong field size: %v x %v", d["w"], d["h"])
	}
	return d["id"].(string)
}

// ---------- tests ----------

func TestJoinFlowAndStateBroadcast(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	conn := dialWS(t, wsURL)
	defer conn.Close()

	id := join(t, conn, "cellar", "pw", "Ada")
	if id == "" {
		t.Fatal("init should carry a connection id")
	}

	snap := waitForState(t, conn, func(s StateSnapshot) bool {
		return s.Room == "cellar" && len(s.Players) == 1
	})
	p := snap.Players[0]
	if p.ID != id || p.Username != "Ada" || p.R != PlayerRadius {
		t.Errorf("unexpected player state: %+v", p)
	}
	if snap.Ball.R != BallRadius {
		t.Errorf("unexpected ball state: %+v", snap.Ball)
	}
	if _, ok := snap.Scores[id]; !ok {
		t.Error("snapshot should include the joiner's score entry")
	}
}

func TestJoinRejections(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	c1 := dialWS(t, wsURL)
	defer c1.Close()
	join(t, c1, "cellar", "pw", "Ada")

	// Wrong passcode
	c2 := dialWS(t, wsURL)
	defer c2.Close()
	sendMsg(t, c2, MsgJoin, JoinMsg{Room: "cellar", Passcode: "nope", Username: "Bob"})
	env := waitForType(t, c2, MsgJoinError)
	if msg := dataMap(t, env)["error"]; msg != ErrInvalidPasscode.Error() {
		t.Errorf("expected invalid passcode error, got %v", msg)
	}

	// Name taken, globally
	sendMsg(t, c2, MsgJoin, JoinMsg{Room: "attic", Passcode: "pw2", Username: "Ada"})
	env = waitForType(t, c2, MsgJoinError)
	if msg := dataMap(t, env)["error"]; msg != ErrNameTaken.Error() {
		t.Errorf("expected name taken error, got %v", msg)
	}

	// Missing fields
	sendMsg(t, c2, MsgJoin, JoinMsg{Room: "", Passcode: "pw", Username: "Bob"})
	env = waitForType(t, c2, MsgJoinError)
	if msg := dataMap(t, env)["error"]; msg != ErrMissingFields.Error() {
		t.Errorf("expected missing fields error, got %v", msg)
	}
}

func TestInputDrivesMovementAndMalformedInputStops(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	conn := dialWS(t, wsURL)
	defer conn.Close()
	id := join(t, conn, "cellar", "pw", "Ada")

	sendMsg(t, conn, MsgInput, InputMsg{DX: 3, DY: 0})
	waitForState(t, conn, func(s StateSnapshot) bool {
		return len(s.Players) == 1 && s.Players[0].ID == id && s.Players[0].VX == PlayerSpeed
	})

	// A payload that does not decode degrades to the zero vector
	raw := []byte(`{"t":"input","d":{"dx":"oops","dy":1}}`)
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write WS: %v", err)
	}
	waitForState(t, conn, func(s StateSnapshot) bool {
		return len(s.Players) == 1 && s.Players[0].VX == 0 && s.Players[0].VY == 0
	})
}

func TestChatRelay(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	c1 := dialWS(t, wsURL)
	defer c1.Close()
	c2 := dialWS(t, wsURL)
	defer c2.Close()

	id1 := join(t, c1, "cellar", "pw", "Ada")
	join(t, c2, "cellar", "pw", "Bob")

	sendMsg(t, c1, MsgChat, ChatMsg{Text: "good game"})

	for _, conn := range []*websocket.Conn{c1, c2} {
		env := waitForType(t, conn, MsgChat)
		d := dataMap(t, env)
		if d["username"] != "Ada" || d["text"] != "good game" || d["id"] != id1 {
			t.Errorf("unexpected chat relay: %v", d)
		}
		if d["color"] == "" {
			t.Error("chat relay should carry the sender's color")
		}
	}
}

func TestLeaveRoomNotifiesEveryone(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	c1 := dialWS(t, wsURL)
	defer c1.Close()
	c2 := dialWS(t, wsURL)
	defer c2.Close()

	join(t, c1, "cellar", "pw", "Ada")
	join(t, c2, "cellar", "pw", "Bob")

	waitForState(t, c2, func(s StateSnapshot) bool { return len(s.Players) == 2 })

	sendMsg(t, c1, MsgLeave, nil)
	waitForType(t, c1, MsgLeftRoom)

	// The survivor sees the membership change in the next snapshot
	snap := waitForState(t, c2, func(s StateSnapshot) bool { return len(s.Players) == 1 })
	if snap.Players[0].Username != "Bob" {
		t.Errorf("expected Bob to remain, got %+v", snap.Players)
	}
}

func TestDisconnectFreesNameAndRoomSlot(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	c1 := dialWS(t, wsURL)
	join(t, c1, "cellar", "pw", "Ada")
	c1.Close()

	// The name becomes claimable once the disconnect is processed
	deadline := time.Now().Add(2 * time.Second)
	for {
		c2 := dialWS(t, wsURL)
		sendMsg(t, c2, MsgJoin, JoinMsg{Room: "cellar", Passcode: "pw", Username: "Ada"})
		env := readEnvelope(t, c2)
		if env.T == MsgInit || env.T == MsgState {
			// Admission succeeded: the name was released
			c2.Close()
			return
		}
		c2.Close()
		if time.Now().After(deadline) {
			t.Fatal("name was never released after disconnect")
		}
		time.Sleep(50 * time.Millisecond)
	}
}
