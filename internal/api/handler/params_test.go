package handler

import (
	"net/url"
	"testing"

	"github.com/eventdesk/eventdesk/internal/validation"
)

func TestParsePoint(t *testing.T) {
	tests := []struct {
		raw     string
		wantErr bool
		lat     float64
		lon     float64
	}{
		{raw: "52.37,4.89", lat: 52.37, lon: 4.89},
		{raw: " -33.86 , 151.21 ", lat: -33.86, lon: 151.21},
		{raw: "52.37", wantErr: true},
		{raw: "north,4.89", wantErr: true},
		{raw: "52.37,east", wantErr: true},
		{raw: "91,0", wantErr: true},
		{raw: "0,181", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			p, err := parsePoint("from", tt.raw)
			if tt.wantErr {
				if !validation.IsError(err) {
					t.Fatalf("parsePoint(%q) error = %v, want validation error", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parsePoint(%q) unexpected error: %v", tt.raw, err)
			}
			if p.Lat != tt.lat || p.Lon != tt.lon {
				t.Errorf("parsePoint(%q) = %+v, want %v,%v", tt.raw, p, tt.lat, tt.lon)
			}
		})
	}
}

func TestOptionalInt(t *testing.T) {
	q := url.Values{"limit": {"7"}, "bad": {"x"}, "big": {"50"}}

	if n, err := optionalInt(q, "limit", 5, 1, 10); err != nil || n != 7 {
		t.Errorf("optionalInt(limit) = %d, %v", n, err)
	}
	if n, err := optionalInt(q, "missing", 5, 1, 10); err != nil || n != 5 {
		t.Errorf("optionalInt(missing) = %d, %v", n, err)
	}
	if _, err := optionalInt(q, "bad", 5, 1, 10); err == nil {
		t.Error("optionalInt(bad) expected error")
	}
	if _, err := optionalInt(q, "big", 5, 1, 10); err == nil {
		t.Error("optionalInt(big) expected error")
	}
}

func TestSplitList(t *testing.T) {
	got := splitList("poi, address,,place ")
	want := []string{"poi", "address", "place"}
	if len(got) != len(want) {
		t.Fatalf("splitList() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("splitList()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if splitList("") != nil {
		t.Error("splitList(\"\") should be nil")
	}
}
