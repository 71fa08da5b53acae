package playlist

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/StarFreedomX/ktv-casting/internal/roomurl"
)

const clientTimeout = 8 * time.Second

// Client talks to the remote karaoke web service's room API.
type Client struct {
	room roomurl.RoomRef
	http *http.Client
}

// NewClient .
func NewClient(room roomurl.RoomRef) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 1
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = time.Second
	retryClient.Logger = nil
	retryClient.HTTPClient = &http.Client{Timeout: clientTimeout}

	return &Client{
		room: room,
		http: retryClient.StandardClient(),
	}
}

// FetchSnapshot reads the room's current playlist.
func (c *Client) FetchSnapshot(ctx context.Context) (Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.room.PlaylistURL(), nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("FetchSnapshot request error: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Snapshot{}, fmt.Errorf("FetchSnapshot GET error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Snapshot{}, fmt.Errorf("FetchSnapshot unexpected status %d", resp.StatusCode)
	}

	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("FetchSnapshot decode error: %w", err)
	}

	return snap, nil
}

// Advance asks the web service to move the room to the next track.
// The remote is authoritative; the caller waits for the resulting
// snapshot instead of switching locally.
func (c *Client) Advance(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.room.AdvanceURL(), nil)
	if err != nil {
		return fmt.Errorf("Advance request error: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("Advance POST error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("Advance unexpected status %d", resp.StatusCode)
	}

	return nil
}
