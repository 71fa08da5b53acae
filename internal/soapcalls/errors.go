package soapcalls

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNetworkTimeout is returned when a SOAP call exceeds its deadline.
	ErrNetworkTimeout = errors.New("soapcalls: network timeout")

	// ErrMalformedXML is returned when a device description cannot be parsed.
	ErrMalformedXML = errors.New("soapcalls: malformed XML")

	// ErrUnsupportedRenderer is returned for devices whose description
	// advertises no AVTransport service.
	ErrUnsupportedRenderer = errors.New("soapcalls: no AVTransport service in description")
)

// HTTPStatusError reports a non-2xx HTTP response to a SOAP call.
type HTTPStatusError struct {
	Code int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("soapcalls: HTTP status %d", e.Code)
}

// SOAPFaultError carries the UPnP error code and fault string
// extracted from a SOAP fault response.
type SOAPFaultError struct {
	Code    int
	Message string
}

func (e *SOAPFaultError) Error() string {
	return fmt.Sprintf("soapcalls: SOAP fault %d: %s", e.Code, e.Message)
}
