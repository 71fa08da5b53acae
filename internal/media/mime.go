package media

import (
	"context"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/h2non/filetype"
)

const (
	// DefaultMIME is what a track without any MIME hint casts as.
	DefaultMIME = "video/*"

	sniffBytes   = 262
	sniffTimeout = 3 * time.Second
)

// Stubbed in tests.
var httpClient = http.DefaultClient

// TypeOf resolves the MIME type for a track. The explicit hint wins;
// otherwise the media URL's extension is tried, then the first bytes
// of the remote file are sniffed. Anything still unknown falls back
// to DefaultMIME so the DIDL class stays video.
func TypeOf(ctx context.Context, hint, mediaURL string) string {
	if hint != "" {
		return hint
	}

	if ext := path.Ext(strippedPath(mediaURL)); ext != "" {
		if t := mime.TypeByExtension(ext); t != "" && isMediaType(t) {
			return baseType(t)
		}
	}

	if t := sniffRemote(ctx, mediaURL); t != "" {
		return t
	}

	return DefaultMIME
}

func strippedPath(mediaURL string) string {
	s := mediaURL
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	return s
}

func isMediaType(t string) bool {
	return strings.HasPrefix(t, "video/") || strings.HasPrefix(t, "audio/")
}

func baseType(t string) string {
	if i := strings.Index(t, ";"); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}

// sniffRemote pulls the first bytes of the media and matches magic
// numbers. Errors just mean "unknown"; the caller has a fallback.
func sniffRemote(ctx context.Context, mediaURL string) string {
	ctx, cancel := context.WithTimeout(ctx, sniffTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("Range", "bytes=0-261")

	resp, err := httpClient.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ""
	}

	head := make([]byte, sniffBytes)
	n, _ := io.ReadFull(resp.Body, head)

	kind, err := filetype.Match(head[:n])
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	if !isMediaType(kind.MIME.Value) {
		return ""
	}

	return kind.MIME.Value
}
