package main

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	sddp "github.com/control4/sddp"
	"github.com/control4/sddp/iface"
	"github.com/m-lab/go/flagx"
)

// repeatableFlag is a thin alias over flagx.StringArray, the repeatable
// flag value type m-lab/go/flagx supplies, used for -H, -b, and -F.
type repeatableFlag = flagx.StringArray

// parseNameValue splits a "name=value" flag argument.
func parseNameValue(raw string) (name, value string, err error) {
	idx := strings.IndexByte(raw, '=')
	if idx < 0 {
		return "", "", fmt.Errorf("expected name=value, got %q", raw)
	}
	return raw[:idx], raw[idx+1:], nil
}

// applyHeaderValue sets name on h, encoding Max-Age as an integer and
// every other header as a string: Max-Age is always integer seconds,
// while Host/From/Type/Primary-Proxy/Proxies/Manufacturer/Model/Driver
// are always strings.
func applyHeaderValue(h *sddp.Headers, name, value string) error {
	if strings.EqualFold(name, "Max-Age") {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("Max-Age must be an integer, got %q: %w", value, err)
		}
		h.SetInt(name, n)
		return nil
	}
	h.SetString(name, value)
	return nil
}

// buildHeaders parses repeated "-H name=value" flags into a header set.
func buildHeaders(raw []string) (*sddp.Headers, error) {
	h := sddp.NewHeaders()
	for _, kv := range raw {
		name, value, err := parseNameValue(kv)
		if err != nil {
			return nil, usageError{err}
		}
		if err := applyHeaderValue(h, name, value); err != nil {
			return nil, usageError{err}
		}
	}
	return h, nil
}

// buildFilters parses repeated "-F name=value" flags into the decoded
// comparison map SearchOptions.FilterHeaders expects: Max-Age compares as
// an integer, everything else as a string.
func buildFilters(raw []string) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(raw))
	for _, kv := range raw {
		name, value, err := parseNameValue(kv)
		if err != nil {
			return nil, usageError{err}
		}
		if strings.EqualFold(name, "Max-Age") {
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, usageError{fmt.Errorf("Max-Age must be an integer, got %q: %w", value, err)}
			}
			out[name] = float64(n)
			continue
		}
		out[name] = value
	}
	return out, nil
}

// selectBindAddrs narrows the enumerated local addresses down to those
// matching the repeated "-b ip" flags, or returns all of them if none
// were given.
func selectBindAddrs(all []iface.Addr, binds []string) ([]iface.Addr, error) {
	if len(binds) == 0 {
		return all, nil
	}
	want := make(map[string]bool, len(binds))
	for _, b := range binds {
		ip := net.ParseIP(b)
		if ip == nil {
			return nil, usageError{fmt.Errorf("invalid -b address %q", b)}
		}
		want[ip.String()] = true
	}
	var out []iface.Addr
	for _, a := range all {
		if want[a.IP.String()] {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return nil, usageError{fmt.Errorf("none of the requested -b addresses matched a local interface")}
	}
	return out, nil
}

// parseLogLevel maps the -log-level flag to the engine's Verbose switch.
// Only "debug" enables verbose logging; "info", "warn", and "error" are
// accepted as no-ops so scripts can dial logging down without an error,
// and anything else is a usage error.
func parseLogLevel(s string) (verbose bool, err error) {
	switch strings.ToLower(s) {
	case "debug":
		return true, nil
	case "info", "warn", "error":
		return false, nil
	default:
		return false, fmt.Errorf("invalid -log-level %q, want debug, info, warn, or error", s)
	}
}
