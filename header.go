// Package sddp implements the core of Control4's Simple Device Discovery
// Protocol: the datagram wire format, the multicast datagram engine, the
// server tasks (collector, responder, advertiser), and the client search
// request. See the engine, server, client, binding, and iface
// subpackages for the rest of the implementation.
package sddp

import (
	"encoding/json"
	"sort"
	"strings"
)

// Headers is a case-insensitive map of SDDP header names to their raw wire
// values, paired with a decoded view computed on every set. Names are
// returned sorted, not in insertion order. Lookups are
// case-insensitive; the casing of the most recent Set call is retained for
// serialization, matching the wire's "preserve what was last written"
// behavior.
type Headers struct {
	// names maps lower(name) -> the most-recently-set display name.
	names map[string]string
	// rawValues maps lower(name) -> the verbatim wire value.
	rawValues map[string]string
	// decoded maps lower(name) -> the JSON-decoded value, present only
	// when rawValues[key] parses as JSON.
	decoded map[string]interface{}
}

// NewHeaders returns an empty header set.
func NewHeaders() *Headers {
	return &Headers{
		names:     make(map[string]string),
		rawValues: make(map[string]string),
		decoded:   make(map[string]interface{}),
	}
}

func key(name string) string {
	return strings.ToLower(name)
}

// SetRaw stores value verbatim under name, and attempts to derive the
// decoded view by JSON-decoding it. If value does not parse as JSON, the
// decoded map has no entry for this key (the raw map still does). A value
// that decodes to JSON null deletes the header instead.
func (h *Headers) SetRaw(name, value string) {
	var decoded interface{}
	err := json.Unmarshal([]byte(value), &decoded)
	if err == nil && decoded == nil {
		h.Delete(name)
		return
	}

	k := key(name)
	h.names[k] = name
	h.rawValues[k] = value

	if err == nil {
		h.decoded[k] = decoded
	} else {
		delete(h.decoded, k)
	}
}

// SetString JSON-encodes value (so it is quoted on the wire) and stores it.
func (h *Headers) SetString(name, value string) {
	encoded, _ := json.Marshal(value)
	h.SetRaw(name, string(encoded))
}

// SetInt JSON-encodes value as a bare integer and stores it.
func (h *Headers) SetInt(name string, value int64) {
	encoded, _ := json.Marshal(value)
	h.SetRaw(name, string(encoded))
}

// SetFloat JSON-encodes value as a bare number and stores it.
func (h *Headers) SetFloat(name string, value float64) {
	encoded, _ := json.Marshal(value)
	h.SetRaw(name, string(encoded))
}

// Delete removes name from both maps. Setting a header to a JSON null
// value through SetRaw is equivalent to deleting it.
func (h *Headers) Delete(name string) {
	k := key(name)
	delete(h.names, k)
	delete(h.rawValues, k)
	delete(h.decoded, k)
}

// Raw returns the verbatim wire value for name and whether it is present.
func (h *Headers) Raw(name string) (string, bool) {
	v, ok := h.rawValues[key(name)]
	return v, ok
}

// Decoded returns the JSON-decoded value for name and whether a decoded
// value is available (it may be absent even when Raw is present, if the
// raw value failed to parse as JSON).
func (h *Headers) Decoded(name string) (interface{}, bool) {
	v, ok := h.decoded[key(name)]
	return v, ok
}

// DecodedString returns the decoded value coerced to a string, for the
// headers that are always semantically string-typed (Host, From, Type,
// Primary-Proxy, Manufacturer, Model, Driver).
func (h *Headers) DecodedString(name string) (string, bool) {
	v, ok := h.Decoded(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// DecodedInt returns the decoded value coerced to an integer, for headers
// that are always semantically integer-typed (Max-Age).
func (h *Headers) DecodedInt(name string) (int64, bool) {
	v, ok := h.Decoded(name)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

// Names returns the display-cased header names, sorted case-insensitively
// so that serialization is deterministic.
func (h *Headers) Names() []string {
	keys := make([]string, 0, len(h.names))
	for k := range h.names {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = h.names[k]
	}
	return out
}

// Len returns the number of headers.
func (h *Headers) Len() int {
	return len(h.rawValues)
}

// Clone returns an independent deep copy.
func (h *Headers) Clone() *Headers {
	c := NewHeaders()
	for k, v := range h.names {
		c.names[k] = v
	}
	for k, v := range h.rawValues {
		c.rawValues[k] = v
	}
	for k, v := range h.decoded {
		c.decoded[k] = v
	}
	return c
}

// Equal reports whether h and other have identical raw header sets,
// independent of insertion order. Datagram equality is defined over raw
// headers, not raw byte identity.
func (h *Headers) Equal(other *Headers) bool {
	if h.Len() != other.Len() {
		return false
	}
	for k, v := range h.rawValues {
		ov, ok := other.rawValues[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}
