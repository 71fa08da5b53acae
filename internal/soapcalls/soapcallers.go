package soapcalls

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Caller drives the AVTransport service of a single renderer. All
// calls POST SOAP 1.1 envelopes to the renderer's control URL and
// parse the answers leniently; a small ordered list of compatibility
// rules absorbs the quirks of non-conforming devices.
type Caller struct {
	Renderer *Renderer

	client *http.Client
	log    zerolog.Logger

	mu           sync.Mutex
	preferCompat bool
}

// NewCaller returns a Caller for the given renderer. SOAP POSTs are
// retried once on connection errors and 5xx answers.
func NewCaller(renderer *Renderer, logger zerolog.Logger) *Caller {
	return &Caller{
		Renderer: renderer,
		client:   newRetryableHTTPClient(1),
		log:      logger,
	}
}

// SetAVTransportURI points the renderer at a media URL. The metadata
// is the DIDL-Lite document for the item, embedded XML-escaped into
// CurrentURIMetaData.
func (c *Caller) SetAVTransportURI(ctx context.Context, mediaURL string, metadata []byte) error {
	body, err := setAVTransportSoapBuild(mediaURL, metadata)
	if err != nil {
		return fmt.Errorf("SetAVTransportURI soap build error: %w", err)
	}

	_, err = c.doAction(ctx, "SetAVTransportURI", body)
	return err
}

// Play starts playback at speed 1.
func (c *Caller) Play(ctx context.Context) error {
	body, err := playSoapBuild()
	if err != nil {
		return fmt.Errorf("Play soap build error: %w", err)
	}

	_, err = c.doAction(ctx, "Play", body)
	return err
}

// Stop halts playback. Valid from any transport state.
func (c *Caller) Stop(ctx context.Context) error {
	body, err := stopSoapBuild()
	if err != nil {
		return fmt.Errorf("Stop soap build error: %w", err)
	}

	_, err = c.doAction(ctx, "Stop", body)
	return err
}

// Pause suspends playback.
func (c *Caller) Pause(ctx context.Context) error {
	body, err := pauseSoapBuild()
	if err != nil {
		return fmt.Errorf("Pause soap build error: %w", err)
	}

	_, err = c.doAction(ctx, "Pause", body)
	return err
}

// GetPositionInfo reads the current playback position. Read-only:
// never mutates renderer state.
func (c *Caller) GetPositionInfo(ctx context.Context) (PositionInfo, error) {
	body, err := getPositionInfoSoapBuild()
	if err != nil {
		return PositionInfo{}, fmt.Errorf("GetPositionInfo soap build error: %w", err)
	}

	resp, err := c.doAction(ctx, "GetPositionInfo", body)
	if err != nil {
		return PositionInfo{}, err
	}

	return parsePositionInfo(resp), nil
}

func (c *Caller) controlURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.preferCompat && c.Renderer.CompatControlURL != "" {
		return c.Renderer.CompatControlURL
	}
	return c.Renderer.ControlURL
}

// doAction posts one SOAP action and applies the compatibility rules:
// any 2xx is success (204 included), faults are extracted leniently,
// and a 404 or fault 401/501 on a canonicalized control URL triggers
// one retry against the compat path.
func (c *Caller) doAction(ctx context.Context, action string, envelope []byte) (string, error) {
	target := c.controlURL()

	respBody, err := c.post(ctx, action, target, envelope)
	if err == nil {
		return respBody, nil
	}

	if !c.shouldTryCompat(err, target) {
		return "", err
	}

	c.log.Debug().Str("action", action).Str("compat", c.Renderer.CompatControlURL).
		Msg("control URL rejected, retrying compat path")

	respBody, compatErr := c.post(ctx, action, c.Renderer.CompatControlURL, envelope)
	if compatErr != nil {
		return "", err
	}

	c.mu.Lock()
	c.preferCompat = true
	c.mu.Unlock()

	return respBody, nil
}

func (c *Caller) shouldTryCompat(err error, target string) bool {
	if c.Renderer.CompatControlURL == "" || target == c.Renderer.CompatControlURL {
		return false
	}

	var httpErr *HTTPStatusError
	if errors.As(err, &httpErr) && httpErr.Code == http.StatusNotFound {
		return true
	}

	var faultErr *SOAPFaultError
	if errors.As(err, &faultErr) && (faultErr.Code == 401 || faultErr.Code == 501) {
		return true
	}

	return false
}

func (c *Caller) post(ctx context.Context, action, target string, envelope []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(envelope))
	if err != nil {
		return "", fmt.Errorf("%s POST error: %w", action, err)
	}

	req.Header = http.Header{
		"Content-Type": []string{`text/xml; charset="utf-8"`},
		"SOAPAction":   []string{`"` + AVTransportURN + `#` + action + `"`},
		"Connection":   []string{"close"},
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", fmt.Errorf("%s: %w", action, ErrNetworkTimeout)
		}
		return "", fmt.Errorf("%s Do POST error: %w", action, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	body := string(raw)

	// Any 2xx is success; 204 in particular carries no body.
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return body, nil
	}

	if code, msg := parseFault(body); code != 0 || msg != "" {
		return "", &SOAPFaultError{Code: code, Message: msg}
	}

	return "", &HTTPStatusError{Code: resp.StatusCode}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// http.Client wraps its own deadline error in plain text.
	return strings.Contains(err.Error(), "Client.Timeout exceeded")
}
