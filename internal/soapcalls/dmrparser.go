package soapcalls

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// AVTransportURN is the only UPnP service this client drives.
	AVTransportURN = "urn:schemas-upnp-org:service:AVTransport:1"

	// compatControlPath is the control path some renderers actually
	// listen on when their advertised controlURL lacks a leading slash.
	compatControlPath = "/_urn:schemas-upnp-org:service:AVTransport_control"

	descriptionTimeout = 3 * time.Second
)

// Renderer describes a discovered MediaRenderer. Read-only once chosen.
type Renderer struct {
	FriendlyName   string
	UDN            string
	DescriptionURL string
	// ControlURL is always absolute; relative values from the device
	// XML are resolved against URLBase or the description URL.
	ControlURL string
	// CompatControlURL is set when the advertised controlURL had no
	// leading slash. The SOAP driver retries against it on 404 and
	// on SOAP faults 401/501.
	CompatControlURL string
}

// DescribeRenderer fetches and parses a device description XML,
// returning the AVTransport endpoints. The fetch times out after 3s
// and is retried once.
func DescribeRenderer(ctx context.Context, descURL string) (*Renderer, error) {
	body, err := fetchDescription(ctx, descURL)
	if err != nil {
		body, err = fetchDescription(ctx, descURL)
	}
	if err != nil {
		return nil, fmt.Errorf("DescribeRenderer fetch error: %w", err)
	}

	var root rootNode
	if err := xml.Unmarshal(body, &root); err != nil {
		return nil, fmt.Errorf("DescribeRenderer unmarshal error (%v): %w", err, ErrMalformedXML)
	}

	for _, service := range root.Device.ServiceList.Services {
		if service.Type != AVTransportURN {
			continue
		}

		controlURL, compatURL, err := canonicalizeControlURL(service.ControlURL, root.URLBase, descURL)
		if err != nil {
			return nil, fmt.Errorf("DescribeRenderer control URL error: %w", err)
		}

		return &Renderer{
			FriendlyName:     strings.TrimSpace(root.Device.FriendlyName),
			UDN:              strings.TrimSpace(root.Device.UDN),
			DescriptionURL:   descURL,
			ControlURL:       controlURL,
			CompatControlURL: compatURL,
		}, nil
	}

	return nil, ErrUnsupportedRenderer
}

func fetchDescription(ctx context.Context, descURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, descriptionTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, descURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetchDescription GET error: %w", err)
	}
	req.Header.Set("Connection", "close")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetchDescription Do GET error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPStatusError{Code: resp.StatusCode}
	}

	return io.ReadAll(resp.Body)
}

// canonicalizeControlURL turns the raw controlURL from a device XML
// into an absolute URL. Absolute values pass through. Relative values
// resolve against URLBase when present, else the description URL. A
// raw value without a leading slash additionally yields the compat
// form used by the 404/401/501 fallback.
func canonicalizeControlURL(raw, urlBase, descURL string) (string, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", fmt.Errorf("empty controlURL: %w", ErrMalformedXML)
	}

	if parsed, err := url.Parse(raw); err == nil && parsed.Scheme != "" && parsed.Host != "" {
		return raw, "", nil
	}

	base := urlBase
	if base == "" {
		base = descURL
	}
	parsedBase, err := url.Parse(base)
	if err != nil || parsedBase.Host == "" {
		return "", "", fmt.Errorf("controlURL base %q: %w", base, ErrMalformedXML)
	}
	origin := parsedBase.Scheme + "://" + parsedBase.Host

	if strings.HasPrefix(raw, "/") {
		return origin + raw, "", nil
	}

	// No leading slash. RFC resolution against the base directory is
	// the first attempt; quirky renderers that advertise paths like
	// "_urn:...AVTransport_control" actually listen on the rooted
	// compat form, so that is kept alongside.
	canonical := origin + "/" + raw
	if ref, err := url.Parse(raw); err == nil {
		canonical = parsedBase.ResolveReference(ref).String()
	}

	return canonical, origin + compatControlPath, nil
}
