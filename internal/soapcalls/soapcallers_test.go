package soapcalls

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type recordedCall struct {
	path   string
	action string
	body   string
}

func soapServer(t *testing.T, handler func(call recordedCall, w http.ResponseWriter)) (*httptest.Server, *[]recordedCall) {
	t.Helper()
	calls := &[]recordedCall{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		call := recordedCall{
			path:   r.URL.Path,
			action: r.Header.Get("SOAPAction"),
			body:   string(raw),
		}
		*calls = append(*calls, call)
		handler(call, w)
	}))
	t.Cleanup(srv.Close)
	return srv, calls
}

func newTestCaller(srvURL string) *Caller {
	return NewCaller(&Renderer{
		FriendlyName: "Test TV",
		ControlURL:   srvURL + "/ctrl",
	}, zerolog.Nop())
}

func TestPlaySendsCanonicalEnvelope(t *testing.T) {
	srv, calls := soapServer(t, func(call recordedCall, w http.ResponseWriter) {
		w.WriteHeader(http.StatusOK)
	})

	caller := newTestCaller(srv.URL)
	if err := caller.Play(context.Background()); err != nil {
		t.Fatalf("Play() err = %v", err)
	}

	if len(*calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(*calls))
	}
	call := (*calls)[0]
	if call.action != `"urn:schemas-upnp-org:service:AVTransport:1#Play"` {
		t.Errorf("SOAPAction = %q", call.action)
	}
	for _, want := range []string{"<u:Play", "<InstanceID>0</InstanceID>", "<Speed>1</Speed>"} {
		if !strings.Contains(call.body, want) {
			t.Errorf("body missing %q:\n%s", want, call.body)
		}
	}
}

func TestNoContentIsSuccess(t *testing.T) {
	srv, _ := soapServer(t, func(call recordedCall, w http.ResponseWriter) {
		w.WriteHeader(http.StatusNoContent)
	})

	caller := newTestCaller(srv.URL)
	if err := caller.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() err = %v, want nil for 204", err)
	}
}

func TestCompatFallbackOn404(t *testing.T) {
	var srvURL string
	srv, calls := soapServer(t, func(call recordedCall, w http.ResponseWriter) {
		if call.path != "/_urn:schemas-upnp-org:service:AVTransport_control" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	srvURL = srv.URL

	caller := NewCaller(&Renderer{
		ControlURL:       srvURL + "/dev/_urn:schemas-upnp-org:service:AVTransport_control",
		CompatControlURL: srvURL + "/_urn:schemas-upnp-org:service:AVTransport_control",
	}, zerolog.Nop())

	metadata, err := DIDLMetadata("Song A", "ktv-casting", "video/mp4", "http://origin/a.mp4")
	if err != nil {
		t.Fatalf("DIDLMetadata() err = %v", err)
	}
	if err := caller.SetAVTransportURI(context.Background(), "http://origin/a.mp4", metadata); err != nil {
		t.Fatalf("SetAVTransportURI() err = %v", err)
	}

	if len(*calls) != 2 {
		t.Fatalf("calls = %d, want 2 (original + compat retry)", len(*calls))
	}
	if (*calls)[1].path != "/_urn:schemas-upnp-org:service:AVTransport_control" {
		t.Errorf("retry path = %q", (*calls)[1].path)
	}

	// Later calls go straight to the compat URL.
	if err := caller.Play(context.Background()); err != nil {
		t.Fatalf("Play() err = %v", err)
	}
	if got := (*calls)[2].path; got != "/_urn:schemas-upnp-org:service:AVTransport_control" {
		t.Errorf("post-fallback path = %q", got)
	}
}

func TestCompatFallbackOnFault401(t *testing.T) {
	fault := `<s:Envelope><s:Body><s:Fault><faultstring>UPnPError</faultstring>` +
		`<detail><UPnPError><errorCode>401</errorCode></UPnPError></detail></s:Fault></s:Body></s:Envelope>`

	srv, calls := soapServer(t, func(call recordedCall, w http.ResponseWriter) {
		if strings.HasPrefix(call.path, "/compat") {
			w.WriteHeader(http.StatusOK)
			return
		}
		// 400-range keeps retryablehttp from retrying the same URL.
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, fault)
	})

	caller := NewCaller(&Renderer{
		ControlURL:       srv.URL + "/ctrl",
		CompatControlURL: srv.URL + "/compat",
	}, zerolog.Nop())

	if err := caller.Play(context.Background()); err != nil {
		t.Fatalf("Play() err = %v", err)
	}
	if len(*calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(*calls))
	}
}

func TestSOAPFaultSurfaced(t *testing.T) {
	fault := `<s:Envelope><s:Body><s:Fault><faultstring>Invalid Action</faultstring>` +
		`<detail><UPnPError><errorCode>718</errorCode></UPnPError></detail></s:Fault></s:Body></s:Envelope>`

	srv, _ := soapServer(t, func(call recordedCall, w http.ResponseWriter) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, fault)
	})

	caller := newTestCaller(srv.URL)
	err := caller.Play(context.Background())

	var faultErr *SOAPFaultError
	if !errors.As(err, &faultErr) {
		t.Fatalf("Play() err = %v, want SOAPFaultError", err)
	}
	if faultErr.Code != 718 || faultErr.Message != "Invalid Action" {
		t.Errorf("fault = %+v", faultErr)
	}
}

func TestGetPositionInfo(t *testing.T) {
	srv, calls := soapServer(t, func(call recordedCall, w http.ResponseWriter) {
		io.WriteString(w, `<s:Envelope><s:Body><u:GetPositionInfoResponse>`+
			`<Track>1</Track><TrackDuration>00:03:30</TrackDuration>`+
			`<RelTime>00:03:29</RelTime><AbsTime>NOT_IMPLEMENTED</AbsTime>`+
			`</u:GetPositionInfoResponse></s:Body></s:Envelope>`)
	})

	caller := newTestCaller(srv.URL)
	info, err := caller.GetPositionInfo(context.Background())
	if err != nil {
		t.Fatalf("GetPositionInfo() err = %v", err)
	}

	if info.RelTime != "00:03:29" {
		t.Errorf("RelTime = %q", info.RelTime)
	}
	if info.TrackDuration != "00:03:30" {
		t.Errorf("TrackDuration = %q", info.TrackDuration)
	}
	if got := (*calls)[0].action; got != `"urn:schemas-upnp-org:service:AVTransport:1#GetPositionInfo"` {
		t.Errorf("SOAPAction = %q", got)
	}
}

func TestCallTimeout(t *testing.T) {
	srv, _ := soapServer(t, func(call recordedCall, w http.ResponseWriter) {
		time.Sleep(2 * time.Second)
	})

	caller := newTestCaller(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := caller.Play(ctx)
	if !errors.Is(err, ErrNetworkTimeout) {
		t.Fatalf("Play() err = %v, want ErrNetworkTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("call took %v, deadline not honored", elapsed)
	}
}

func TestDIDLMetadataRoundTrip(t *testing.T) {
	metadata, err := DIDLMetadata("Song A", "mic-drop", "video/mp4", "http://10.0.0.2:8080/proxy?url=http%3A%2F%2Forigin%2Fa.mp4")
	if err != nil {
		t.Fatalf("DIDLMetadata() err = %v", err)
	}

	var parsed struct {
		Item struct {
			Title   string `xml:"title"`
			Creator string `xml:"creator"`
			Class   string `xml:"class"`
			Res     struct {
				ProtocolInfo string `xml:"protocolInfo,attr"`
				URL          string `xml:",chardata"`
			} `xml:"res"`
		} `xml:"item"`
	}
	if err := xml.Unmarshal(metadata, &parsed); err != nil {
		t.Fatalf("generated DIDL does not re-parse: %v", err)
	}

	if parsed.Item.Title != "Song A" {
		t.Errorf("title = %q", parsed.Item.Title)
	}
	if parsed.Item.Creator != "mic-drop" {
		t.Errorf("creator = %q", parsed.Item.Creator)
	}
	if parsed.Item.Class != "object.item.videoItem" {
		t.Errorf("class = %q", parsed.Item.Class)
	}
	if parsed.Item.Res.URL != "http://10.0.0.2:8080/proxy?url=http%3A%2F%2Forigin%2Fa.mp4" {
		t.Errorf("res = %q", parsed.Item.Res.URL)
	}
	if parsed.Item.Res.ProtocolInfo != "http-get:*:video/mp4:*" {
		t.Errorf("protocolInfo = %q", parsed.Item.Res.ProtocolInfo)
	}
}

func TestDIDLMetadataDefaults(t *testing.T) {
	metadata, err := DIDLMetadata("", "", "", "http://origin/track.bin")
	if err != nil {
		t.Fatalf("DIDLMetadata() err = %v", err)
	}

	body := string(metadata)
	for _, want := range []string{
		"object.item.videoItem",
		"http-get:*:video/*:*",
		"<dc:title>track.bin</dc:title>",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metadata missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "dc:creator") {
		t.Errorf("empty creator should be omitted:\n%s", body)
	}
}

func TestDIDLMetadataAudioClass(t *testing.T) {
	metadata, err := DIDLMetadata("Song B", "", "audio/mpeg", "http://origin/b.mp3")
	if err != nil {
		t.Fatalf("DIDLMetadata() err = %v", err)
	}
	if !strings.Contains(string(metadata), "object.item.audioItem") {
		t.Errorf("metadata missing audio class:\n%s", metadata)
	}
}

func TestMetadataEscapedOnceInEnvelope(t *testing.T) {
	metadata, err := DIDLMetadata("Song A", "", "video/mp4", "http://origin/a.mp4")
	if err != nil {
		t.Fatalf("DIDLMetadata() err = %v", err)
	}

	envelope, err := setAVTransportSoapBuild("http://origin/a.mp4", metadata)
	if err != nil {
		t.Fatalf("setAVTransportSoapBuild() err = %v", err)
	}

	body := string(envelope)
	if !strings.Contains(body, "&lt;DIDL-Lite") {
		t.Errorf("DIDL not escaped inside CurrentURIMetaData:\n%s", body)
	}
	if strings.Contains(body, "&amp;lt;") {
		t.Errorf("DIDL double-escaped:\n%s", body)
	}
}
