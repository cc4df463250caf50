package geoip

import (
	"errors"
	"net"
	"testing"

	"github.com/oschwald/geoip2-golang"
)

type fakeReader struct {
	calls int
	codes map[string]string
}

func (f *fakeReader) Country(ip net.IP) (*geoip2.Country, error) {
	f.calls++
	rec := &geoip2.Country{}
	rec.Country.IsoCode = f.codes[ip.String()]
	return rec, nil
}

func (f *fakeReader) Close() error { return nil }

func TestNewResolverEmptyPath(t *testing.T) {
	r, err := NewResolver("  ")
	if err != nil || r != nil {
		t.Fatalf("expected nil resolver, got %v %v", r, err)
	}
	if _, err := r.CountryCode("1.1.1.1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close on nil resolver: %v", err)
	}
}

func TestNewResolverMissingFile(t *testing.T) {
	if _, err := NewResolver("/nonexistent/GeoLite2-Country.mmdb"); err == nil {
		t.Fatal("expected error for missing database")
	}
}

func TestCountryCodeCachesLookups(t *testing.T) {
	reader := &fakeReader{codes: map[string]string{"203.0.113.7": "ID"}}
	r := newResolver(reader)
	for i := 0; i < 3; i++ {
		code, err := r.CountryCode(" 203.0.113.7 ")
		if err != nil || code != "ID" {
			t.Fatalf("CountryCode = %q, %v", code, err)
		}
	}
	if code, _ := r.CountryCode("198.51.100.1"); code != "" {
		t.Fatalf("unknown ip code = %q", code)
	}
	if reader.calls != 2 {
		t.Fatalf("reader calls = %d, want 2", reader.calls)
	}
	if _, err := r.CountryCode("not-an-ip"); err == nil {
		t.Fatal("expected error for invalid ip")
	}
}
