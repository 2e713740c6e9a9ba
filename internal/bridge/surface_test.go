package bridge_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"dappbridge/internal/bridge"
	"dappbridge/internal/protocol"
	"dappbridge/internal/queue"
)

func TestWebSocketSurface_RoundTrip(t *testing.T) {
	q := queue.NewMemoryQueue()
	c := bridge.NewController("ws", q)
	served := make(chan error, 1)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			served <- err
			return
		}
		served <- bridge.NewWebSocketSurface(conn).Serve(c)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	frames := []string{
		`not json`,
		`{"type":"ipc-message","channel":"invoke","args":["req-1","foo","bar"]}`,
	}
	for _, f := range frames {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
			t.Fatalf("WriteMessage: %v", err)
		}
	}

	var req queue.PendingRequest
	deadline := time.Now().Add(2 * time.Second)
	for {
		var ok bool
		if req, ok = c.Pending("req-1"); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("request never enqueued")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := c.Resolve(req, 42); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp struct {
		Channel string `json:"channel"`
		Payload int    `json:"payload"`
	}
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if resp.Channel != protocol.SuccessChannel("invoke", "req-1") || resp.Payload != 42 {
		t.Fatalf("response = %+v", resp)
	}

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ipc-message","channel":"invoke","args":["req-2"]}`))
	for {
		if _, ok := c.Pending("req-2"); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("req-2 never enqueued")
		}
		time.Sleep(5 * time.Millisecond)
	}

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	select {
	case err := <-served:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after close")
	}

	if c.Mounted() {
		t.Fatal("still mounted after disconnect")
	}
	if len(q.List("ws")) != 0 {
		t.Fatal("pending requests survived disconnect")
	}
}
