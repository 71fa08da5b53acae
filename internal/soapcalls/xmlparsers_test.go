package soapcalls

import (
	"testing"
	"time"
)

func TestExtractTag(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		tag    string
		want   string
		wantOK bool
	}{
		{
			name:   "plain",
			body:   "<RelTime>00:01:02</RelTime>",
			tag:    "RelTime",
			want:   "00:01:02",
			wantOK: true,
		},
		{
			name:   "namespaced",
			body:   `<u:GetPositionInfoResponse xmlns:u="x"><u:RelTime>00:01:02</u:RelTime></u:GetPositionInfoResponse>`,
			tag:    "RelTime",
			want:   "00:01:02",
			wantOK: true,
		},
		{
			name:   "mismatched namespace prefixes",
			body:   "<a:TrackDuration>0:03:30</b:TrackDuration>",
			tag:    "TrackDuration",
			want:   "0:03:30",
			wantOK: true,
		},
		{
			name:   "surrounded by noise",
			body:   "garbage <x>1</x><RelTime> 00:00:07 </RelTime> trailing",
			tag:    "RelTime",
			want:   "00:00:07",
			wantOK: true,
		},
		{
			name:   "self closing",
			body:   "<RelTime/>",
			tag:    "RelTime",
			want:   "",
			wantOK: true,
		},
		{
			name:   "missing",
			body:   "<TrackDuration>0:03:30</TrackDuration>",
			tag:    "RelTime",
			wantOK: false,
		},
		{
			name:   "unclosed",
			body:   "<RelTime>00:01:02",
			tag:    "RelTime",
			wantOK: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := extractTag(tc.body, tc.tag)
			if ok != tc.wantOK {
				t.Fatalf("extractTag() ok = %v, want %v", ok, tc.wantOK)
			}
			if got != tc.want {
				t.Errorf("extractTag() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseFault(t *testing.T) {
	body := `<s:Envelope><s:Body><s:Fault>
		<faultcode>s:Client</faultcode>
		<faultstring>UPnPError</faultstring>
		<detail><UPnPError><errorCode>401</errorCode></UPnPError></detail>
	</s:Fault></s:Body></s:Envelope>`

	code, msg := parseFault(body)
	if code != 401 {
		t.Errorf("parseFault() code = %d, want 401", code)
	}
	if msg != "UPnPError" {
		t.Errorf("parseFault() msg = %q, want UPnPError", msg)
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in     string
		want   time.Duration
		wantOK bool
	}{
		{"00:03:30", 3*time.Minute + 30*time.Second, true},
		{"0:03:30", 3*time.Minute + 30*time.Second, true},
		{"01:00:00", time.Hour, true},
		{"0:00:12.500", 12 * time.Second, true},
		{"NOT_IMPLEMENTED", 0, false},
		{"", 0, false},
		{"12:30", 0, false},
		{"aa:bb:cc", 0, false},
	}

	for _, tc := range tests {
		got, ok := ParseClock(tc.in)
		if ok != tc.wantOK {
			t.Errorf("ParseClock(%q) ok = %v, want %v", tc.in, ok, tc.wantOK)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseClock(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestFormatClock(t *testing.T) {
	if got := FormatClock(3*time.Minute + 30*time.Second); got != "00:03:30" {
		t.Errorf("FormatClock() = %q, want 00:03:30", got)
	}
	if got := FormatClock(-time.Second); got != "00:00:00" {
		t.Errorf("FormatClock(negative) = %q, want 00:00:00", got)
	}
}
