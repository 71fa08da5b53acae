package soapcalls

import (
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
)

const (
	soapSchema   = "http://schemas.xmlsoap.org/soap/envelope/"
	soapEncoding = "http://schemas.xmlsoap.org/soap/encoding/"
)

// PlayEnvelope - As in Play Pause Stop.
type PlayEnvelope struct {
	XMLName  xml.Name `xml:"s:Envelope"`
	Schema   string   `xml:"xmlns:s,attr"`
	Encoding string   `xml:"s:encodingStyle,attr"`
	PlayBody PlayBody `xml:"s:Body"`
}

// PlayBody .
type PlayBody struct {
	XMLName    xml.Name   `xml:"s:Body"`
	PlayAction PlayAction `xml:"u:Play"`
}

// PlayAction .
type PlayAction struct {
	XMLName     xml.Name `xml:"u:Play"`
	AVTransport string   `xml:"xmlns:u,attr"`
	InstanceID  string
	Speed       string
}

// PauseEnvelope .
type PauseEnvelope struct {
	XMLName   xml.Name  `xml:"s:Envelope"`
	Schema    string    `xml:"xmlns:s,attr"`
	Encoding  string    `xml:"s:encodingStyle,attr"`
	PauseBody PauseBody `xml:"s:Body"`
}

// PauseBody .
type PauseBody struct {
	XMLName     xml.Name    `xml:"s:Body"`
	PauseAction PauseAction `xml:"u:Pause"`
}

// PauseAction .
type PauseAction struct {
	XMLName     xml.Name `xml:"u:Pause"`
	AVTransport string   `xml:"xmlns:u,attr"`
	InstanceID  string
}

// StopEnvelope .
type StopEnvelope struct {
	XMLName  xml.Name `xml:"s:Envelope"`
	Schema   string   `xml:"xmlns:s,attr"`
	Encoding string   `xml:"s:encodingStyle,attr"`
	StopBody StopBody `xml:"s:Body"`
}

// StopBody .
type StopBody struct {
	XMLName    xml.Name   `xml:"s:Body"`
	StopAction StopAction `xml:"u:Stop"`
}

// StopAction .
type StopAction struct {
	XMLName     xml.Name `xml:"u:Stop"`
	AVTransport string   `xml:"xmlns:u,attr"`
	InstanceID  string
}

// GetPositionInfoEnvelope .
type GetPositionInfoEnvelope struct {
	XMLName  xml.Name            `xml:"s:Envelope"`
	Schema   string              `xml:"xmlns:s,attr"`
	Encoding string              `xml:"s:encodingStyle,attr"`
	Body     GetPositionInfoBody `xml:"s:Body"`
}

// GetPositionInfoBody .
type GetPositionInfoBody struct {
	XMLName xml.Name              `xml:"s:Body"`
	Action  GetPositionInfoAction `xml:"u:GetPositionInfo"`
}

// GetPositionInfoAction .
type GetPositionInfoAction struct {
	XMLName     xml.Name `xml:"u:GetPositionInfo"`
	AVTransport string   `xml:"xmlns:u,attr"`
	InstanceID  string
}

// SetAVTransportEnvelope .
type SetAVTransportEnvelope struct {
	XMLName  xml.Name           `xml:"s:Envelope"`
	Schema   string             `xml:"xmlns:s,attr"`
	Encoding string             `xml:"s:encodingStyle,attr"`
	Body     SetAVTransportBody `xml:"s:Body"`
}

// SetAVTransportBody .
type SetAVTransportBody struct {
	XMLName           xml.Name          `xml:"s:Body"`
	SetAVTransportURI SetAVTransportURI `xml:"u:SetAVTransportURI"`
}

// SetAVTransportURI .
type SetAVTransportURI struct {
	XMLName            xml.Name `xml:"u:SetAVTransportURI"`
	AVTransport        string   `xml:"xmlns:u,attr"`
	InstanceID         string
	CurrentURI         string
	CurrentURIMetaData CurrentURIMetaData `xml:"CurrentURIMetaData"`
}

// CurrentURIMetaData .
type CurrentURIMetaData struct {
	XMLName xml.Name `xml:"CurrentURIMetaData"`
	Value   []byte   `xml:",chardata"`
}

// DIDLLite .
type DIDLLite struct {
	XMLName      xml.Name     `xml:"DIDL-Lite"`
	SchemaDIDL   string       `xml:"xmlns,attr"`
	DC           string       `xml:"xmlns:dc,attr"`
	SchemaUPNP   string       `xml:"xmlns:upnp,attr"`
	DIDLLiteItem DIDLLiteItem `xml:"item"`
}

// DIDLLiteItem .
type DIDLLiteItem struct {
	XMLName    xml.Name `xml:"item"`
	ID         string   `xml:"id,attr"`
	ParentID   string   `xml:"parentID,attr"`
	Restricted string   `xml:"restricted,attr"`
	UPNPClass  string   `xml:"upnp:class"`
	DCtitle    string   `xml:"dc:title"`
	DCcreator  string   `xml:"dc:creator,omitempty"`
	ResNode    ResNode  `xml:"res"`
}

// ResNode .
type ResNode struct {
	XMLName      xml.Name `xml:"res"`
	ProtocolInfo string   `xml:"protocolInfo,attr"`
	Value        string   `xml:",chardata"`
}

// DIDLMetadata builds the DIDL-Lite document embedded into
// SetAVTransportURI. An absent MIME defaults to video/*.
func DIDLMetadata(title, creator, mediaType, mediaURL string) ([]byte, error) {
	if mediaType == "" {
		mediaType = "video/*"
	}

	class := "object.item.videoItem"
	if strings.HasPrefix(mediaType, "audio/") {
		class = "object.item.audioItem"
	}

	if title == "" {
		title = mediaURL
		if parsed, err := url.Parse(mediaURL); err == nil && parsed.Path != "" {
			title = strings.TrimLeft(parsed.Path, "/")
		}
	}

	l := DIDLLite{
		SchemaDIDL: "urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/",
		DC:         "http://purl.org/dc/elements/1.1/",
		SchemaUPNP: "urn:schemas-upnp-org:metadata-1-0/upnp/",
		DIDLLiteItem: DIDLLiteItem{
			ID:         "0",
			ParentID:   "-1",
			Restricted: "1",
			UPNPClass:  class,
			DCtitle:    title,
			DCcreator:  creator,
			ResNode: ResNode{
				ProtocolInfo: fmt.Sprintf("http-get:*:%s:*", mediaType),
				Value:        mediaURL,
			},
		},
	}

	b, err := xml.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("DIDLMetadata Marshal error: %w", err)
	}

	return b, nil
}

func setAVTransportSoapBuild(mediaURL string, metadata []byte) ([]byte, error) {
	d := SetAVTransportEnvelope{
		Schema:   soapSchema,
		Encoding: soapEncoding,
		Body: SetAVTransportBody{
			SetAVTransportURI: SetAVTransportURI{
				AVTransport: AVTransportURN,
				InstanceID:  "0",
				CurrentURI:  mediaURL,
				// The chardata marshal below escapes the DIDL
				// document exactly once.
				CurrentURIMetaData: CurrentURIMetaData{
					Value: metadata,
				},
			},
		},
	}

	xmlStart := []byte("<?xml version='1.0' encoding='utf-8'?>")
	b, err := xml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("setAVTransportSoapBuild Marshal error: %w", err)
	}

	return append(xmlStart, b...), nil
}

func playSoapBuild() ([]byte, error) {
	d := PlayEnvelope{
		Schema:   soapSchema,
		Encoding: soapEncoding,
		PlayBody: PlayBody{
			PlayAction: PlayAction{
				AVTransport: AVTransportURN,
				InstanceID:  "0",
				Speed:       "1",
			},
		},
	}

	xmlStart := []byte("<?xml version='1.0' encoding='utf-8'?>")
	b, err := xml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("playSoapBuild Marshal error: %w", err)
	}

	return append(xmlStart, b...), nil
}

func stopSoapBuild() ([]byte, error) {
	d := StopEnvelope{
		Schema:   soapSchema,
		Encoding: soapEncoding,
		StopBody: StopBody{
			StopAction: StopAction{
				AVTransport: AVTransportURN,
				InstanceID:  "0",
			},
		},
	}

	xmlStart := []byte("<?xml version='1.0' encoding='utf-8'?>")
	b, err := xml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("stopSoapBuild Marshal error: %w", err)
	}

	return append(xmlStart, b...), nil
}

func pauseSoapBuild() ([]byte, error) {
	d := PauseEnvelope{
		Schema:   soapSchema,
		Encoding: soapEncoding,
		PauseBody: PauseBody{
			PauseAction: PauseAction{
				AVTransport: AVTransportURN,
				InstanceID:  "0",
			},
		},
	}

	xmlStart := []byte("<?xml version='1.0' encoding='utf-8'?>")
	b, err := xml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("pauseSoapBuild Marshal error: %w", err)
	}

	return append(xmlStart, b...), nil
}

func getPositionInfoSoapBuild() ([]byte, error) {
	d := GetPositionInfoEnvelope{
		Schema:   soapSchema,
		Encoding: soapEncoding,
		Body: GetPositionInfoBody{
			Action: GetPositionInfoAction{
				AVTransport: AVTransportURN,
				InstanceID:  "0",
			},
		},
	}

	xmlStart := []byte("<?xml version='1.0' encoding='utf-8'?>")
	b, err := xml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("getPositionInfoSoapBuild Marshal error: %w", err)
	}

	return append(xmlStart, b...), nil
}
