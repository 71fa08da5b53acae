package playlist

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/StarFreedomX/ktv-casting/internal/log"
)

const pollInterval = 3 * time.Second

// PollingTransport periodically fetches the room snapshot and feeds
// it into the queue. It is the fallback producer when the persistent
// socket is unavailable and the only one in POLLING mode; the
// synchronizer cannot tell the two apart.
type PollingTransport struct {
	client   *Client
	queue    *Queue
	interval time.Duration
	log      zerolog.Logger
}

// NewPollingTransport .
func NewPollingTransport(client *Client, queue *Queue) *PollingTransport {
	return &PollingTransport{
		client:   client,
		queue:    queue,
		interval: pollInterval,
		log:      log.WithComponent("polling"),
	}
}

// Run polls until the context is cancelled. The first fetch happens
// immediately so the renderer starts without waiting a full interval.
func (t *PollingTransport) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	var lostSince time.Time

	for {
		snap, err := t.client.FetchSnapshot(ctx)
		switch {
		case err == nil:
			lostSince = time.Time{}
			t.queue.Push(Event{Kind: EventSnapshot, Snapshot: snap})
		case ctx.Err() != nil:
			return
		default:
			if lostSince.IsZero() {
				lostSince = time.Now()
			} else if time.Since(lostSince) > lostGraceWindow {
				t.log.Warn().Err(err).Msg("room unreachable, running on cached snapshot")
				t.queue.Push(Event{Kind: EventLost})
				lostSince = time.Time{}
			}
			t.log.Debug().Err(err).Msg("poll failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
