package realtime

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"tollgate/internal/checkout"
)

func TestHub_BroadcastsStepEvents(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	go hub.Run()

	upgrader := websocket.Upgrader{}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("listener not permitted in this environment: %v", err)
	}

	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("upgrade: %v", err)
		}
		hub.Register <- conn
	}))
	srv.Listener = ln
	srv.Start()
	t.Cleanup(srv.Close)

	wsURL := "ws" + srv.URL[len("http"):]
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
	})

	sink := NewStepSink(hub)
	sink.StepChanged(context.Background(), checkout.Snapshot{
		SessionID: "sess_1",
		Step:      checkout.StepPaying,
		DatasetID: "ds_1",
	}, checkout.StepCreating, "gateway widget opening")

	readCh := make(chan []byte, 1)
	go func() {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Errorf("read message: %v", err)
			return
		}
		readCh <- data
	}()

	select {
	case got := <-readCh:
		var event sessionStepEvent
		if err := json.Unmarshal(got, &event); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if event.Type != eventSessionStep {
			t.Fatalf("unexpected event type %q", event.Type)
		}
		if event.Session.SessionID != "sess_1" || event.Session.Step != checkout.StepPaying {
			t.Fatalf("unexpected session payload: %+v", event.Session)
		}
		if event.FromStep != checkout.StepCreating {
			t.Fatalf("unexpected from step %q", event.FromStep)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for broadcast")
	}
}
