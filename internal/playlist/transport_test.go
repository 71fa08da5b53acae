package playlist

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/StarFreedomX/ktv-casting/internal/roomurl"
)

func roomServer(t *testing.T, wsHandler http.HandlerFunc) (roomurl.RoomRef, *Client) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/playlist/101", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"current_index":0,"tracks":[{"id":"t1","title":"Song A","url":"http://origin/a.mp4"}]}`))
	})
	if wsHandler != nil {
		mux.HandleFunc("/ws/101", wsHandler)
	}

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	room, err := roomurl.Parse(srv.URL + "/101")
	if err != nil {
		t.Fatalf("Parse() err = %v", err)
	}
	return room, NewClient(room)
}

func TestClientFetchSnapshot(t *testing.T) {
	_, client := roomServer(t, nil)

	snap, err := client.FetchSnapshot(context.Background())
	if err != nil {
		t.Fatalf("FetchSnapshot() err = %v", err)
	}

	current, ok := snap.Current()
	if !ok {
		t.Fatal("snapshot has no current track")
	}
	if current.ID != "t1" || current.Title != "Song A" {
		t.Errorf("current = %+v", current)
	}
}

func TestClientAdvance(t *testing.T) {
	var method, path string
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	room, _ := roomurl.Parse(srv.URL + "/101")
	client := NewClient(room)

	if err := client.Advance(context.Background()); err != nil {
		t.Fatalf("Advance() err = %v", err)
	}
	if method != http.MethodPost || path != "/api/advance/101" {
		t.Errorf("request = %s %s, want POST /api/advance/101", method, path)
	}
}

func TestWSTransportDeliversFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	room, client := roomServer(t, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"playlist","current_index":0,"tracks":[{"id":"t2","title":"Song B","url":"http://origin/b.mp4"}]}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"advance"}`))

		// Hold the socket open long enough for the client to read.
		time.Sleep(500 * time.Millisecond)
	})

	queue := NewQueue()
	ws := NewWSTransport(room.WSURL(""), client, queue, 30*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := ws.Connect(ctx)
	if err != nil {
		t.Fatalf("Connect() err = %v", err)
	}
	go ws.Run(ctx, conn)

	// First event is the refetched snapshot after connect.
	ev, ok := queue.Pop(ctx)
	if !ok || ev.Kind != EventSnapshot {
		t.Fatalf("event 1 = %+v, %v", ev, ok)
	}
	if current, _ := ev.Snapshot.Current(); current.ID != "t1" {
		t.Errorf("refetched snapshot current = %+v", current)
	}

	ev, ok = queue.Pop(ctx)
	if !ok || ev.Kind != EventSnapshot {
		t.Fatalf("event 2 = %+v, %v", ev, ok)
	}
	if current, _ := ev.Snapshot.Current(); current.ID != "t2" {
		t.Errorf("pushed snapshot current = %+v", current)
	}

	ev, ok = queue.Pop(ctx)
	if !ok || ev.Kind != EventAdvance {
		t.Fatalf("event 3 = %+v, %v", ev, ok)
	}
}

func TestWSTransportReconnects(t *testing.T) {
	var connections atomic.Int32
	upgrader := websocket.Upgrader{}
	room, client := roomServer(t, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		connections.Add(1)
		// Server drops the socket immediately; the client must come back.
		conn.Close()
	})

	queue := NewQueue()
	ws := NewWSTransport(room.WSURL(""), client, queue, 30*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
	defer cancel()

	conn, err := ws.Connect(ctx)
	if err != nil {
		t.Fatalf("Connect() err = %v", err)
	}
	go ws.Run(ctx, conn)

	waitFor(t, func() bool { return connections.Load() >= 2 })

	// Every (re)connect re-reads the snapshot.
	ev, ok := queue.Pop(ctx)
	if !ok || ev.Kind != EventSnapshot {
		t.Fatalf("event = %+v, %v", ev, ok)
	}
}

func TestPollingTransportPushesSnapshots(t *testing.T) {
	_, client := roomServer(t, nil)

	queue := NewQueue()
	polling := NewPollingTransport(client, queue)
	polling.interval = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go polling.Run(ctx)

	for i := 0; i < 2; i++ {
		ev, ok := queue.Pop(ctx)
		if !ok || ev.Kind != EventSnapshot {
			t.Fatalf("event %d = %+v, %v", i, ev, ok)
		}
		if current, _ := ev.Snapshot.Current(); current.ID != "t1" {
			t.Errorf("current = %+v", current)
		}
	}
}

func TestWSURLDerivation(t *testing.T) {
	room := roomurl.RoomRef{BaseURL: "http://ktv.example.com", RoomID: "101"}
	got := room.WSURL("nick name")
	if !strings.HasPrefix(got, "ws://ktv.example.com/ws/101") {
		t.Errorf("WSURL = %q", got)
	}
}
