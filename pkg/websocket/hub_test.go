package websocket

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"assessment-system/internal/auth"
)

type ownerAuthorizer struct {
	mu    sync.Mutex
	owner string
	state string
}

func (a *ownerAuthorizer) setState(s string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = s
}

func (a *ownerAuthorizer) JoinRoom(userID, room string) (interface{}, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if userID != a.owner {
		return nil, errors.New("not yours")
	}
	return map[string]string{"room": room, "state": a.state}, nil
}

func newTestServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	router := mux.NewRouter()
	withUser := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := r.URL.Query().Get("user")
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), auth.Identity{UserID: user})))
		})
	}
	router.Handle("/ws/attempts/{id}", withUser(http.HandlerFunc(hub.HandleWebSocket)))
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, room, user string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/attempts/" + room + "?user=" + user
	return websocket.DefaultDialer.Dial(url, nil)
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSubscriberReceivesSnapshotAndBroadcasts(t *testing.T) {
	hub := NewHub()
	authz := &ownerAuthorizer{owner: "u1", state: "in_progress"}
	hub.SetAuthorizer(authz)
	go hub.Run()
	srv := newTestServer(t, hub)

	conn, _, err := dial(t, srv, "a1", "u1")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	msg := readMessage(t, conn)
	if msg.Type != SnapshotMessage {
		t.Fatalf("first message type = %q", msg.Type)
	}
	if data, _ := msg.Data.(map[string]interface{}); data["room"] != "a1" {
		t.Errorf("snapshot data = %v", msg.Data)
	}

	waitFor(t, func() bool { return hub.RoomSize("a1") == 1 })
	hub.BroadcastMessage("a1", "tick", map[string]int{"remaining_seconds": 59})
	hub.BroadcastMessage("other", "tick", map[string]int{"remaining_seconds": 1})

	msg = readMessage(t, conn)
	if msg.Type != "tick" {
		t.Fatalf("message type = %q", msg.Type)
	}
	raw, _ := json.Marshal(msg.Data)
	if string(raw) != `{"remaining_seconds":59}` {
		t.Errorf("tick data = %s", raw)
	}

	authz.setState("completed")
	if err := conn.WriteJSON(Message{Type: "sync"}); err != nil {
		t.Fatalf("write sync: %v", err)
	}
	msg = readMessage(t, conn)
	if data, _ := msg.Data.(map[string]interface{}); msg.Type != SnapshotMessage || data["state"] != "completed" {
		t.Errorf("sync reply = %+v", msg)
	}

	hub.CloseRoom("a1")
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("read after CloseRoom err = %v", err)
	}
	if hub.RoomSize("a1") != 0 {
		t.Errorf("room size after close = %d", hub.RoomSize("a1"))
	}
}

func TestForeignSubscriberRejected(t *testing.T) {
	hub := NewHub()
	hub.SetAuthorizer(&ownerAuthorizer{owner: "u1"})
	go hub.Run()
	srv := newTestServer(t, hub)

	_, resp, err := dial(t, srv, "a1", "u2")
	if !errors.Is(err, websocket.ErrBadHandshake) {
		t.Fatalf("dial err = %v", err)
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %+v", resp)
	}
}

func TestClientDisconnectLeavesRoom(t *testing.T) {
	hub := NewHub()
	hub.SetAuthorizer(&ownerAuthorizer{owner: "u1"})
	go hub.Run()
	srv := newTestServer(t, hub)

	conn, _, err := dial(t, srv, "a1", "u1")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	readMessage(t, conn)
	waitFor(t, func() bool { return hub.RoomSize("a1") == 1 })

	conn.Close()
	waitFor(t, func() bool { return hub.RoomSize("a1") == 0 })
}
