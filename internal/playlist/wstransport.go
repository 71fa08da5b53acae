package playlist

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/StarFreedomX/ktv-casting/internal/log"
)

const (
	wsConnectBudget = 5 * time.Second
	backoffMax      = 30 * time.Second
	lostGraceWindow = 60 * time.Second
	maxMissedPings  = 2
)

type wsFrame struct {
	Type         string  `json:"type"`
	CurrentIndex int     `json:"current_index"`
	Tracks       []Track `json:"tracks"`
}

// WSTransport keeps a persistent socket to the room open and feeds
// its frames into the queue. Lost connections reconnect with
// exponential backoff; every reconnect re-reads the full snapshot so
// the synchronizer can reconcile whatever was missed.
type WSTransport struct {
	url       string
	client    *Client
	queue     *Queue
	keepAlive time.Duration
	log       zerolog.Logger

	// Stubbed in tests.
	dial func(ctx context.Context, url string) (*websocket.Conn, error)
}

// NewWSTransport .
func NewWSTransport(wsURL string, client *Client, queue *Queue, keepAlive time.Duration) *WSTransport {
	return &WSTransport{
		url:       wsURL,
		client:    client,
		queue:     queue,
		keepAlive: keepAlive,
		log:       log.WithComponent("ws"),
		dial: func(ctx context.Context, url string) (*websocket.Conn, error) {
			dialer := websocket.Dialer{HandshakeTimeout: wsConnectBudget}
			conn, _, err := dialer.DialContext(ctx, url, nil)
			return conn, err
		},
	}
}

// Connect performs the initial dial within the connect budget. The
// caller falls back to polling when this fails.
func (t *WSTransport) Connect(ctx context.Context) (*websocket.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, wsConnectBudget)
	defer cancel()
	return t.dial(ctx, t.url)
}

// Run consumes the socket until the context is cancelled, pushing a
// fresh snapshot after every (re)connect. conn is the already-open
// connection from Connect.
func (t *WSTransport) Run(ctx context.Context, conn *websocket.Conn) {
	backoff := time.Second
	lostSince := time.Time{}

	for {
		if conn == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}

			var err error
			conn, err = t.Connect(ctx)
			if err != nil {
				t.log.Debug().Err(err).Dur("backoff", backoff).Msg("reconnect failed")
				if backoff < backoffMax {
					backoff *= 2
					if backoff > backoffMax {
						backoff = backoffMax
					}
				}
				if !lostSince.IsZero() && time.Since(lostSince) > lostGraceWindow {
					t.log.Warn().Msg("room socket unreachable, running on cached snapshot")
					t.queue.Push(Event{Kind: EventLost})
					lostSince = time.Time{}
				}
				continue
			}
		}

		backoff = time.Second
		lostSince = time.Time{}

		// Reconciles anything missed while disconnected.
		if snap, err := t.client.FetchSnapshot(ctx); err == nil {
			t.queue.Push(Event{Kind: EventSnapshot, Snapshot: snap})
		} else {
			t.log.Debug().Err(err).Msg("snapshot refresh after connect failed")
		}

		t.consume(ctx, conn)
		conn.Close()
		conn = nil
		lostSince = time.Now()

		if ctx.Err() != nil {
			return
		}
	}
}

// consume reads frames until the socket dies or the context ends.
func (t *WSTransport) consume(ctx context.Context, conn *websocket.Conn) {
	var missed atomic.Int32

	conn.SetPongHandler(func(string) error {
		missed.Store(0)
		conn.SetReadDeadline(time.Now().Add(t.keepAlive*maxMissedPings + time.Second))
		return nil
	})
	conn.SetReadDeadline(time.Now().Add(t.keepAlive*maxMissedPings + time.Second))

	pingerCtx, cancelPinger := context.WithCancel(ctx)
	defer cancelPinger()

	// Keep-alive pinger lives only while this socket is open.
	go func() {
		ticker := time.NewTicker(t.keepAlive)
		defer ticker.Stop()
		for {
			select {
			case <-pingerCtx.Done():
				return
			case <-ticker.C:
				if missed.Add(1) > maxMissedPings {
					t.log.Debug().Msg("heartbeat unanswered, closing socket")
					conn.Close()
					return
				}
				deadline := time.Now().Add(2 * time.Second)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	go func() {
		<-pingerCtx.Done()
		conn.Close()
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				t.log.Debug().Err(err).Msg("socket read error")
			}
			return
		}
		missed.Store(0)
		conn.SetReadDeadline(time.Now().Add(t.keepAlive*maxMissedPings + time.Second))

		var frame wsFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			t.log.Debug().Err(err).Msg("unparsable frame")
			continue
		}

		switch frame.Type {
		case "playlist":
			t.queue.Push(Event{Kind: EventSnapshot, Snapshot: Snapshot{
				CurrentIndex: frame.CurrentIndex,
				Tracks:       frame.Tracks,
			}})
		case "advance":
			t.queue.Push(Event{Kind: EventAdvance})
		}
	}
}
