package soapcalls

import (
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	// DefaultCallTimeout bounds every SOAP call.
	DefaultCallTimeout = 8 * time.Second

	soapHTTPDialTimeout           = 5 * time.Second
	soapHTTPKeepAlive             = 30 * time.Second
	soapHTTPResponseHeaderTimeout = 5 * time.Second
	soapHTTPExpectContinueTimeout = 1 * time.Second
	soapHTTPIdleConnTimeout       = 90 * time.Second
)

var soapHTTPTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   soapHTTPDialTimeout,
		KeepAlive: soapHTTPKeepAlive,
	}).DialContext,
	ResponseHeaderTimeout: soapHTTPResponseHeaderTimeout,
	ExpectContinueTimeout: soapHTTPExpectContinueTimeout,
	IdleConnTimeout:       soapHTTPIdleConnTimeout,
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout:   DefaultCallTimeout,
		Transport: soapHTTPTransport,
	}
}

// newRetryableHTTPClient returns a client that retries failed calls
// (connection errors and 5xx responses) retryMax times.
func newRetryableHTTPClient(retryMax int) *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = retryMax
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = time.Second
	retryClient.Logger = nil
	retryClient.HTTPClient = newHTTPClient()

	return retryClient.StandardClient()
}
