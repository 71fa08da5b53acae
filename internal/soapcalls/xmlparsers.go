package soapcalls

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type rootNode struct {
	XMLName xml.Name `xml:"root"`
	URLBase string   `xml:"URLBase"`
	Device  struct {
		XMLName      xml.Name `xml:"device"`
		FriendlyName string   `xml:"friendlyName"`
		UDN          string   `xml:"UDN"`
		ServiceList  struct {
			XMLName  xml.Name `xml:"serviceList"`
			Services []struct {
				XMLName    xml.Name `xml:"service"`
				Type       string   `xml:"serviceType"`
				ID         string   `xml:"serviceId"`
				ControlURL string   `xml:"controlURL"`
			} `xml:"service"`
		} `xml:"serviceList"`
	} `xml:"device"`
}

// extractTag walks raw text looking for a balanced <tag>...</tag> pair
// by local name, ignoring any namespace prefix. Many renderers emit
// idiosyncratic XML, so a strict decoder is the wrong tool here.
func extractTag(body, tag string) (string, bool) {
	rest := body
	for {
		open := strings.Index(rest, "<")
		if open < 0 {
			return "", false
		}
		rest = rest[open+1:]

		end := strings.Index(rest, ">")
		if end < 0 {
			return "", false
		}

		raw := strings.TrimSpace(rest[:end])
		selfClosing := strings.HasSuffix(raw, "/")
		name := localTagName(strings.TrimSuffix(raw, "/"))
		if name != tag || strings.HasPrefix(raw, "/") {
			continue
		}
		if selfClosing {
			return "", true
		}

		rest = rest[end+1:]
		search := 0
		for {
			ci := strings.Index(rest[search:], "</")
			if ci < 0 {
				return "", false
			}
			ci += search
			gt := strings.Index(rest[ci:], ">")
			if gt < 0 {
				return "", false
			}
			if localTagName(strings.TrimSpace(rest[ci+2:ci+gt])) == tag {
				return strings.TrimSpace(rest[:ci]), true
			}
			search = ci + gt + 1
		}
	}
}

func localTagName(raw string) string {
	if i := strings.IndexAny(raw, " \t\r\n"); i >= 0 {
		raw = raw[:i]
	}
	if i := strings.LastIndex(raw, ":"); i >= 0 {
		raw = raw[i+1:]
	}
	return raw
}

// parseFault pulls errorCode and faultstring out of a SOAP fault
// response. Zero code and empty message mean the body carried no
// recognizable fault.
func parseFault(body string) (int, string) {
	var code int
	if raw, ok := extractTag(body, "errorCode"); ok {
		code, _ = strconv.Atoi(raw)
	}
	msg, _ := extractTag(body, "faultstring")
	if msg == "" {
		msg, _ = extractTag(body, "errorDescription")
	}
	return code, msg
}

// PositionInfo is the raw answer of a GetPositionInfo call.
// Both fields are HH:MM:SS strings, or NOT_IMPLEMENTED.
type PositionInfo struct {
	RelTime       string
	TrackDuration string
}

func parsePositionInfo(body string) PositionInfo {
	var info PositionInfo
	info.RelTime, _ = extractTag(body, "RelTime")
	info.TrackDuration, _ = extractTag(body, "TrackDuration")
	return info
}

// ParseClock converts an AVTransport HH:MM:SS value to a duration.
// NOT_IMPLEMENTED and unparsable values report ok=false.
func ParseClock(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "NOT_IMPLEMENTED" {
		return 0, false
	}

	// Some renderers append fractional seconds (0:03:30.000).
	if i := strings.Index(s, "."); i >= 0 {
		s = s[:i]
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, false
	}

	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	sec, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil || h < 0 || m < 0 || sec < 0 {
		return 0, false
	}

	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, true
}

// FormatClock renders a duration as the HH:MM:SS form AVTransport expects.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}
