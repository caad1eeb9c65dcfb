package sddp

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrMalformedDatagram is returned by ParseDatagram when the input cannot be
// interpreted as a statement line followed by headers.
var ErrMalformedDatagram = errors.New("sddp: malformed datagram")

// Datagram is a single SDDP wire message: a statement line, a set of
// headers with both raw and decoded views, and an optional opaque body.
type Datagram struct {
	statement string
	headers   *Headers
	body      []byte

	// cachedRaw holds the canonical serialization most recently built by
	// Bytes; mutators reset it.
	cachedRaw []byte
}

// NewDatagram constructs a Datagram from a statement line, an optional set
// of headers (nil for none; the Datagram takes ownership of a clone), and
// an optional body.
func NewDatagram(statement string, headers *Headers, body []byte) *Datagram {
	d := &Datagram{statement: statement}
	if headers != nil {
		d.headers = headers.Clone()
	} else {
		d.headers = NewHeaders()
	}
	if len(body) > 0 {
		d.body = append([]byte(nil), body...)
	}
	return d
}

var lineSplitRE = regexp.MustCompile(`\r\n|\n`)

// separators lists every byte sequence accepted as the boundary between
// the last header line and the body.
var separators = [][]byte{
	[]byte("\r\n\r\n"),
	[]byte("\n\n"),
	[]byte("\r\n\n"),
	[]byte("\n\r\n"),
}

// ParseDatagram decodes raw wire bytes into a Datagram. Both CRLF and bare
// LF line endings are accepted. A decode failure returns
// ErrMalformedDatagram wrapped with context; callers (the engine's receive
// loop) treat this as non-fatal.
func ParseDatagram(raw []byte) (*Datagram, error) {
	headerBlock := raw
	var body []byte
	bestIdx := -1
	bestLen := 0
	for _, sep := range separators {
		if idx := bytes.Index(raw, sep); idx >= 0 && (bestIdx == -1 || idx < bestIdx) {
			bestIdx = idx
			bestLen = len(sep)
		}
	}
	if bestIdx >= 0 {
		headerBlock = raw[:bestIdx]
		body = raw[bestIdx+bestLen:]
	}

	lines := lineSplitRE.Split(string(headerBlock), -1)
	// Drop a single trailing empty line produced by a terminating newline
	// with no body separator (a datagram with no body and no trailing
	// newline falls out of this the same way).
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: empty datagram", ErrMalformedDatagram)
	}

	d := &Datagram{
		statement: lines[0],
		headers:   NewHeaders(),
	}
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		idx := bytes.IndexByte([]byte(line), ':')
		if idx < 0 {
			return nil, fmt.Errorf("%w: header line without colon: %q", ErrMalformedDatagram, line)
		}
		name := line[:idx]
		value := line[idx+1:]
		// RFC 2822-style folding: a single leading space after the colon
		// is conventional and stripped; additional leading whitespace is
		// part of a folded continuation and is preserved verbatim since
		// this implementation does not emit folded lines on receive.
		if len(value) > 0 && value[0] == ' ' {
			value = value[1:]
		}
		d.headers.SetRaw(name, value)
	}
	if len(body) > 0 {
		d.body = append([]byte(nil), body...)
	}
	return d, nil
}

// Statement returns the datagram's statement line.
func (d *Datagram) Statement() string { return d.statement }

// SetStatement replaces the statement line.
func (d *Datagram) SetStatement(s string) {
	d.statement = s
	d.cachedRaw = nil
}

// Headers returns the mutable header set. Any mutation through the
// returned value invalidates the cached serialization.
func (d *Datagram) Headers() *Headers {
	d.cachedRaw = nil
	return d.headers
}

// Body returns the opaque body bytes, or nil if empty.
func (d *Datagram) Body() []byte { return d.body }

// SetBody replaces the body.
func (d *Datagram) SetBody(body []byte) {
	if len(body) == 0 {
		d.body = nil
	} else {
		d.body = append([]byte(nil), body...)
	}
	d.cachedRaw = nil
}

// Bytes returns the canonical wire serialization: statement line, CRLF,
// headers sorted by name each followed by CRLF, and, if the body is
// non-empty, a blank line followed by the body. It is rebuilt on every
// call, so mutations made through a previously returned Headers value are
// always reflected.
func (d *Datagram) Bytes() []byte {
	var buf bytes.Buffer
	buf.WriteString(d.statement)
	buf.WriteString("\r\n")
	for _, name := range d.headers.Names() {
		value, _ := d.headers.Raw(name)
		buf.WriteString(name)
		buf.WriteString(": ")
		buf.WriteString(value)
		buf.WriteString("\r\n")
	}
	if len(d.body) > 0 {
		buf.WriteString("\r\n")
		buf.Write(d.body)
	}
	d.cachedRaw = buf.Bytes()
	return d.cachedRaw
}

// Clone returns an independent deep copy.
func (d *Datagram) Clone() *Datagram {
	c := &Datagram{
		statement: d.statement,
		headers:   d.headers.Clone(),
	}
	if len(d.body) > 0 {
		c.body = append([]byte(nil), d.body...)
	}
	return c
}

// Equal defines datagram equality as statement + raw headers + body, not
// raw byte identity.
func (d *Datagram) Equal(other *Datagram) bool {
	if other == nil {
		return false
	}
	if d.statement != other.statement {
		return false
	}
	if !bytes.Equal(d.body, other.body) {
		return false
	}
	return d.headers.Equal(other.headers)
}

// statementRE patterns recognize the three statement-line shapes spec
// §4.1 defines.
var (
	notifyAliveRE = regexp.MustCompile(`^NOTIFY +ALIVE +SDDP/(\d+)\.(\d+)\s*$`)
	searchRE      = regexp.MustCompile(`^SEARCH +(\S+) +(HTTP|SDDP)/(\d+)\.(\d+)\s*$`)
	responseRE    = regexp.MustCompile(`^(HTTP|SDDP)/(\d+)\.(\d+) +(\d+) +(.*?)\s*$`)
)

// NotifyAliveVersion reports the SDDP major/minor version if the statement
// line is a well-formed `NOTIFY ALIVE SDDP/<M>.<m>` line with major >= 1.
func (d *Datagram) NotifyAliveVersion() (major, minor int, ok bool) {
	m := notifyAliveRE.FindStringSubmatch(d.statement)
	if m == nil {
		return 0, 0, false
	}
	maj, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	if maj < 1 {
		return 0, 0, false
	}
	return maj, min, true
}

// SearchFields reports the parsed fields of a `SEARCH <pattern> <proto>/<M>.<m>`
// statement line.
func (d *Datagram) SearchFields() (pattern, proto string, major, minor int, ok bool) {
	m := searchRE.FindStringSubmatch(d.statement)
	if m == nil {
		return "", "", 0, 0, false
	}
	maj, _ := strconv.Atoi(m[3])
	min, _ := strconv.Atoi(m[4])
	if maj < 1 {
		return "", "", 0, 0, false
	}
	return m[1], m[2], maj, min, true
}

// ResponseFields reports the parsed fields of a `<proto>/<M>.<m> <code> <status>`
// statement line.
func (d *Datagram) ResponseFields() (proto string, major, minor, code int, status string, ok bool) {
	m := responseRE.FindStringSubmatch(d.statement)
	if m == nil {
		return "", 0, 0, 0, "", false
	}
	maj, _ := strconv.Atoi(m[2])
	min, _ := strconv.Atoi(m[3])
	if maj < 1 {
		return "", 0, 0, 0, "", false
	}
	c, _ := strconv.Atoi(m[4])
	return m[1], maj, min, c, m[5], true
}

// BuildResponseStatement formats a `<proto>/<major>.<minor> <code> <status>`
// statement line.
func BuildResponseStatement(proto string, major, minor, code int, status string) string {
	return fmt.Sprintf("%s/%d.%d %d %s", proto, major, minor, code, status)
}

// BuildSearchStatement formats a `SEARCH <pattern> SDDP/<major>.<minor>`
// statement line.
func BuildSearchStatement(pattern string, major, minor int) string {
	return fmt.Sprintf("SEARCH %s SDDP/%d.%d", pattern, major, minor)
}

// BuildNotifyAliveStatement formats a `NOTIFY ALIVE SDDP/<major>.<minor>`
// statement line.
func BuildNotifyAliveStatement(major, minor int) string {
	return fmt.Sprintf("NOTIFY ALIVE SDDP/%d.%d", major, minor)
}
