package roomurl

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// ErrBadRoomURL is returned for inputs that cannot name a room.
var ErrBadRoomURL = errors.New("roomurl: not a valid room URL")

// RoomRef is the parsed identity of a remote karaoke room.
// Immutable after Parse.
type RoomRef struct {
	BaseURL string
	RoomID  string
}

// Parse splits a room URL into its base URL and room id. The final
// non-empty path segment is the room id; a roomId query parameter,
// when present, takes precedence. Inputs without a scheme are assumed
// to be http.
func Parse(raw string) (RoomRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return RoomRef{}, ErrBadRoomURL
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return RoomRef{}, fmt.Errorf("roomurl parse error: %w", ErrBadRoomURL)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return RoomRef{}, fmt.Errorf("scheme %q: %w", parsed.Scheme, ErrBadRoomURL)
	}
	if parsed.Host == "" {
		return RoomRef{}, fmt.Errorf("empty host: %w", ErrBadRoomURL)
	}

	if id := parsed.Query().Get("roomId"); id != "" {
		return RoomRef{
			BaseURL: parsed.Scheme + "://" + parsed.Host,
			RoomID:  id,
		}, nil
	}

	segments := strings.Split(parsed.Path, "/")
	var id string
	last := -1
	for i, seg := range segments {
		if seg != "" {
			id = seg
			last = i
		}
	}
	if id == "" {
		return RoomRef{}, fmt.Errorf("no room segment: %w", ErrBadRoomURL)
	}

	base := parsed.Scheme + "://" + parsed.Host + strings.TrimSuffix(strings.Join(segments[:last], "/"), "/")

	return RoomRef{BaseURL: base, RoomID: id}, nil
}

// WSURL derives the room socket URL: http becomes ws, https becomes
// wss, and the room socket path is appended. The nickname rides along
// as a query parameter so the web side can show who is casting.
func (r RoomRef) WSURL(nickname string) string {
	ws := r.BaseURL
	switch {
	case strings.HasPrefix(ws, "https://"):
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	case strings.HasPrefix(ws, "http://"):
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}

	ws = strings.TrimSuffix(ws, "/") + "/ws/" + r.RoomID
	if nickname != "" {
		ws += "?nickname=" + url.QueryEscape(nickname)
	}

	return ws
}

// PlaylistURL is the polling endpoint for the room snapshot.
func (r RoomRef) PlaylistURL() string {
	return r.BaseURL + "/api/playlist/" + r.RoomID
}

// AdvanceURL is the endpoint that asks the web service to move to the
// next track.
func (r RoomRef) AdvanceURL() string {
	return r.BaseURL + "/api/advance/" + r.RoomID
}
