package devices

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/koron/go-ssdp"
	"github.com/pkg/errors"

	"github.com/StarFreedomX/ktv-casting/internal/log"
	"github.com/StarFreedomX/ktv-casting/internal/soapcalls"
)

var (
	// ErrNoDeviceAvailable means discovery completed but found no
	// usable Media Renderer.
	ErrNoDeviceAvailable = errors.New("devices: no available Media Renderers")

	// ErrDeviceNotAvailable is returned when a picked index does not
	// exist in the discovered list.
	ErrDeviceNotAvailable = errors.New("devices: requested device not available")
)

// Stubbed in tests.
var (
	ssdpSearch               = ssdp.Search
	loadRendererFromLocation = soapcalls.DescribeRenderer
)

const defaultSearchWindow = 5

// LoadSSDPservices multicasts an M-SEARCH for AVTransport renderers
// and resolves every reply's LOCATION into a Renderer. Duplicate
// devices (same UDN) collapse into one entry. An empty result is not
// an error; the caller decides whether that is fatal.
func LoadSSDPservices(delay int) ([]*soapcalls.Renderer, error) {
	if delay <= 0 || delay > defaultSearchWindow {
		delay = defaultSearchWindow
	}

	logger := log.WithComponent("discovery")

	list, err := ssdpSearch(soapcalls.AVTransportURN, delay, "")
	if err != nil {
		return nil, fmt.Errorf("LoadSSDPservices search error: %w", err)
	}

	seenLocation := make(map[string]bool)
	seenUDN := make(map[string]bool)
	var renderers []*soapcalls.Renderer

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(delay+5)*time.Second)
	defer cancel()

	for _, srv := range list {
		if srv.Type != soapcalls.AVTransportURN {
			continue
		}
		if seenLocation[srv.Location] {
			continue
		}
		seenLocation[srv.Location] = true

		renderer, err := loadRendererFromLocation(ctx, srv.Location)
		if err != nil {
			// A reply without a usable AVTransport description is
			// skipped, not fatal; other renderers may still work.
			logger.Debug().Err(err).Str("location", srv.Location).Msg("skipping device")
			continue
		}

		if renderer.UDN != "" && seenUDN[renderer.UDN] {
			continue
		}
		if renderer.UDN != "" {
			seenUDN[renderer.UDN] = true
		}

		if renderer.FriendlyName == "" {
			renderer.FriendlyName = srv.Server
		}

		renderers = append(renderers, renderer)
	}

	sort.Slice(renderers, func(i, j int) bool {
		return renderers[i].FriendlyName < renderers[j].FriendlyName
	})

	return renderers, nil
}

// DevicePicker returns the renderer at the given 1-based index.
func DevicePicker(renderers []*soapcalls.Renderer, i int) (*soapcalls.Renderer, error) {
	if len(renderers) == 0 {
		return nil, ErrNoDeviceAvailable
	}
	if i <= 0 || i > len(renderers) {
		return nil, ErrDeviceNotAvailable
	}
	return renderers[i-1], nil
}
