package sddp

import (
	"testing"

	"github.com/go-test/deep"
)

func TestDatagramRoundTrip(t *testing.T) {
	h := NewHeaders()
	h.SetInt("Max-Age", 1800)
	h.SetString("Host", "h:1902")
	h.SetString("Type", "x")
	d := NewDatagram("SDDP/1.0 200 OK", h, nil)

	raw := d.Bytes()
	parsed, err := ParseDatagram(raw)
	if err != nil {
		t.Fatalf("ParseDatagram: %v", err)
	}
	if !d.Equal(parsed) {
		t.Fatalf("round-trip mismatch: %v", deep.Equal(d, parsed))
	}

	// Idempotence: serializing a second time produces byte-identical
	// output.
	second := parsed.Bytes()
	if string(second) != string(raw) {
		t.Fatalf("serialization not idempotent:\nfirst:  %q\nsecond: %q", raw, second)
	}
}

func TestDatagramNoBodyNoTrailingNewline(t *testing.T) {
	raw := []byte("NOTIFY ALIVE SDDP/1.0\r\nHost: \"h:1902\"")
	d, err := ParseDatagram(raw)
	if err != nil {
		t.Fatalf("ParseDatagram: %v", err)
	}
	if len(d.Body()) != 0 {
		t.Fatalf("expected empty body, got %q", d.Body())
	}
	reser := d.Bytes()
	want := "NOTIFY ALIVE SDDP/1.0\r\nHost: \"h:1902\"\r\n"
	if string(reser) != want {
		t.Fatalf("got %q, want %q", reser, want)
	}
}

func TestHeaderStringVsInt(t *testing.T) {
	h := NewHeaders()
	h.SetRaw("A", `"123"`)
	h.SetRaw("B", `123`)

	if s, ok := h.DecodedString("A"); !ok || s != "123" {
		t.Fatalf("A: got %q, %v", s, ok)
	}
	if _, ok := h.DecodedInt("A"); ok {
		t.Fatalf("A should not decode as int")
	}
	if n, ok := h.DecodedInt("B"); !ok || n != 123 {
		t.Fatalf("B: got %d, %v", n, ok)
	}
}

func TestHeaderCaseInsensitive(t *testing.T) {
	h := NewHeaders()
	h.SetString("Max-Age", "x")
	if _, ok := h.Raw("MAX-AGE"); !ok {
		t.Fatalf("expected case-insensitive lookup to succeed")
	}
	if _, ok := h.Raw("max-age"); !ok {
		t.Fatalf("expected case-insensitive lookup to succeed")
	}
}

func TestHeaderBareTokenNotJSON(t *testing.T) {
	h := NewHeaders()
	h.SetRaw("Custom", "not-json-{")
	if _, ok := h.Raw("Custom"); !ok {
		t.Fatalf("raw value should still be present")
	}
	if _, ok := h.Decoded("Custom"); ok {
		t.Fatalf("decoded value should be absent for invalid JSON")
	}
}

func TestDecodedOnlyForJSONRaw(t *testing.T) {
	h := NewHeaders()
	h.SetRaw("Custom", "not-json-{")
	h.SetRaw("Model", `"TestDevPlus"`)
	// Headers has no operation that clears the decoded view alone. This
	// checks the coherence of the two views after raw sets: a non-JSON raw
	// value has no decoded entry, and a JSON raw value decodes to its
	// value.
	if _, ok := h.Decoded("Custom"); ok {
		t.Fatalf("non-JSON raw should never appear in decoded map")
	}
	v, ok := h.Decoded("Model")
	if !ok || v != "TestDevPlus" {
		t.Fatalf("got %v, %v", v, ok)
	}
}

func TestStatementLineParsers(t *testing.T) {
	d := NewDatagram("NOTIFY ALIVE SDDP/1.0", nil, nil)
	maj, min, ok := d.NotifyAliveVersion()
	if !ok || maj != 1 || min != 0 {
		t.Fatalf("got %d.%d, %v", maj, min, ok)
	}

	d2 := NewDatagram("SEARCH * HTTP/1.1", nil, nil)
	pattern, proto, maj2, min2, ok2 := d2.SearchFields()
	if !ok2 || pattern != "*" || proto != "HTTP" || maj2 != 1 || min2 != 1 {
		t.Fatalf("got %q %q %d.%d %v", pattern, proto, maj2, min2, ok2)
	}

	d3 := NewDatagram("SDDP/1.0 200 OK", nil, nil)
	proto3, maj3, min3, code3, status3, ok3 := d3.ResponseFields()
	if !ok3 || proto3 != "SDDP" || maj3 != 1 || min3 != 0 || code3 != 200 || status3 != "OK" {
		t.Fatalf("got %q %d.%d %d %q %v", proto3, maj3, min3, code3, status3, ok3)
	}
}
