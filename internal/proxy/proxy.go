package proxy

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/StarFreedomX/ktv-casting/internal/log"
)

// ErrProxyBind is returned when the listen socket cannot be opened.
var ErrProxyBind = errors.New("proxy: failed to bind listen socket")

// Headers copied from the inbound renderer request to the upstream origin.
var forwardedRequestHeaders = []string{"Range", "If-Modified-Since", "User-Agent"}

// Headers copied from the upstream response back to the renderer.
var forwardedResponseHeaders = []string{
	"Content-Type",
	"Content-Length",
	"Content-Range",
	"Accept-Ranges",
	"Last-Modified",
}

// Server re-serves remote media over the LAN so renderers pull from
// this host instead of the origin. Renderers frequently open several
// range requests per playback; every request gets its own handler
// goroutine and its own upstream connection.
type Server struct {
	http    *http.Server
	localIP string
	port    int
	client  *http.Client
	log     zerolog.Logger
}

// New creates a proxy server bound to 0.0.0.0:port. localIP is the
// LAN-routable address renderers will be pointed at; keepAlive bounds
// idle connections.
func New(localIP string, port int, keepAlive time.Duration) *Server {
	s := &Server{
		localIP: localIP,
		port:    port,
		// The proxy streams media; only the dial and header phases
		// are bounded, never the body copy.
		client: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: keepAlive,
				}).DialContext,
				ResponseHeaderTimeout: 10 * time.Second,
			},
		},
		log: log.WithComponent("proxy"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/proxy", s.proxyHandler)

	s.http = &http.Server{
		Addr:        "0.0.0.0:" + strconv.Itoa(port),
		Handler:     mux,
		IdleTimeout: keepAlive,
	}

	return s
}

// Serve binds the listen socket and serves until Shutdown. The
// serverStarted channel is signalled once the socket is bound.
func (s *Server) Serve(serverStarted chan<- struct{}) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("%v: %w", err, ErrProxyBind)
	}

	serverStarted <- struct{}{}
	if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("proxy serve error: %w", err)
	}

	return nil
}

// Shutdown drains in-flight requests and closes the listen socket.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// RendererURL builds the renderer-visible URL for a remote media URL.
func (s *Server) RendererURL(mediaURL string) string {
	return fmt.Sprintf("http://%s:%d/proxy?url=%s", s.localIP, s.port, url.QueryEscape(mediaURL))
}

func (s *Server) proxyHandler(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	target := req.URL.Query().Get("url")
	if target == "" {
		http.Error(w, "missing url parameter", http.StatusBadRequest)
		return
	}

	parsed, err := url.Parse(target)
	if err != nil || !parsed.IsAbs() {
		http.Error(w, "url parameter must be an absolute URL", http.StatusBadRequest)
		return
	}

	upReq, err := http.NewRequestWithContext(req.Context(), req.Method, target, nil)
	if err != nil {
		http.Error(w, "bad upstream request", http.StatusBadGateway)
		return
	}
	for _, h := range forwardedRequestHeaders {
		if v := req.Header.Get(h); v != "" {
			upReq.Header.Set(h, v)
		}
	}

	resp, err := s.client.Do(upReq)
	if err != nil {
		s.log.Warn().Err(err).Str("url", target).Msg("upstream fetch failed")
		http.Error(w, "upstream error", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	respHeader := w.Header()
	for _, h := range forwardedResponseHeaders {
		if v := resp.Header.Get(h); v != "" {
			respHeader.Set(h, v)
		}
	}
	// Some renderers only start range requests once they see this.
	respHeader["transferMode.dlna.org"] = []string{"Streaming"}

	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		s.log.Debug().Err(err).Str("url", target).Msg("stream interrupted")
	}
}
