package client

import (
	"context"
	"fmt"
	"time"

	sddp "github.com/control4/sddp"
	"github.com/control4/sddp/engine"
	"github.com/control4/sddp/metrics"
)

// ResponseInfo wraps a received SEARCH response datagram with receive-time
// metadata.
type ResponseInfo struct {
	Binding       string
	Src           string
	Datagram      *sddp.Datagram
	SDDPVersion   string
	StatusCode    int
	Status        string
	MonotonicTime float64
	UTCTime       time.Time
}

// SearchOptions configures a SearchRequest.
type SearchOptions struct {
	// Pattern is the SEARCH target; conventionally "*". Defaults to "*"
	// if empty.
	Pattern string
	// ResponseWaitTime bounds how long the search collects responses.
	// Defaults to 4 seconds if zero.
	ResponseWaitTime time.Duration
	// MaxResponses ends collection early once this many responses have
	// been yielded; 0 means no limit.
	MaxResponses int
	// IncludeErrorResponses includes non-200 responses when true;
	// otherwise they are dropped.
	IncludeErrorResponses bool
	// FilterHeaders, if non-empty, drops any response whose decoded
	// header value does not exactly equal the given value for every
	// name (case-insensitive name, exact decoded value).
	FilterHeaders map[string]interface{}
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.Pattern == "" {
		o.Pattern = "*"
	}
	if o.ResponseWaitTime <= 0 {
		o.ResponseWaitTime = 4 * time.Second
	}
	return o
}

// SearchRequest is a scoped search: on creation it installs a subscriber
// and sends a SEARCH datagram on every binding before returning, so that
// no response can be missed.
type SearchRequest struct {
	client    *Client
	opts      SearchOptions
	sub       *engine.Subscriber
	release   func()
	endTime   time.Time
	yielded   int
	monoStart time.Time
}

// Search starts a new search request. Callers must call Close (typically
// via defer) to release the subscriber on every exit path.
func Search(ctx context.Context, c *Client, opts SearchOptions) (*SearchRequest, error) {
	opts = opts.withDefaults()

	sub, release, err := c.Engine.Subscribe(engine.DefaultQueueCapacity)
	if err != nil {
		return nil, err
	}

	sr := &SearchRequest{
		client:    c,
		opts:      opts,
		sub:       sub,
		release:   release,
		endTime:   time.Now().Add(opts.ResponseWaitTime),
		monoStart: time.Now(),
	}

	dest := c.dest()
	for _, b := range c.Engine.Bindings() {
		dgram := sddp.NewDatagram(sddp.BuildSearchStatement(opts.Pattern, 1, 0), nil, nil)
		dgram.Headers().SetString("Host", b.UnicastAddr.String())
		if _, err := b.Send(dest, dgram.Bytes()); err != nil {
			release()
			return nil, fmt.Errorf("client: search: send on %s: %w", b.Name, err)
		}
		metrics.DatagramsSent.WithLabelValues("search").Inc()
	}

	return sr, nil
}

// Close releases the search request's subscriber. Safe to call more than
// once.
func (sr *SearchRequest) Close() {
	sr.release()
}

// Next blocks until the next matching ResponseInfo is available, or
// returns ok=false when the search has terminated: MaxResponses reached,
// the wait window elapsed, or engine end-of-stream. The remaining wait
// budget is recomputed on every call.
func (sr *SearchRequest) Next(ctx context.Context) (*ResponseInfo, error, bool) {
	for {
		if sr.opts.MaxResponses > 0 && sr.yielded >= sr.opts.MaxResponses {
			return nil, nil, false
		}
		remaining := time.Until(sr.endTime)
		if remaining <= 0 {
			return nil, nil, false
		}

		type result struct {
			r   engine.Received
			err error
			ok  bool
		}
		ch := make(chan result, 1)
		go func() {
			r, err, ok := sr.sub.Receive()
			ch <- result{r, err, ok}
		}()

		select {
		case res := <-ch:
			if !res.ok {
				return nil, res.err, false
			}
			info, matched := sr.match(res.r)
			if !matched {
				continue
			}
			sr.yielded++
			return info, nil, true
		case <-time.After(remaining):
			return nil, nil, false
		case <-ctx.Done():
			return nil, ctx.Err(), false
		}
	}
}

// match applies the statement-line recognition and the two response
// filters in order.
func (sr *SearchRequest) match(r engine.Received) (*ResponseInfo, bool) {
	_, major, minor, code, status, ok := r.Datagram.ResponseFields()
	if !ok || major < 1 {
		return nil, false
	}
	if code != 200 && !sr.opts.IncludeErrorResponses {
		return nil, false
	}
	for name, want := range sr.opts.FilterHeaders {
		got, present := r.Datagram.Headers().Decoded(name)
		if !present || !headerValueEqual(got, want) {
			return nil, false
		}
	}
	return &ResponseInfo{
		Binding:       r.Binding.Name,
		Src:           r.Src.String(),
		Datagram:      r.Datagram,
		SDDPVersion:   fmt.Sprintf("%d.%d", major, minor),
		StatusCode:    code,
		Status:        status,
		MonotonicTime: time.Since(sr.monoStart).Seconds(),
		UTCTime:       time.Now().UTC(),
	}, true
}

// headerValueEqual compares a decoded header value against a filter value.
// Only the header name lookup is case-insensitive; the value itself must
// match exactly.
func headerValueEqual(got, want interface{}) bool {
	return got == want
}

// SimpleSearch consumes a search to completion and returns all matching
// responses (a convenience wrapper around Search/Next).
func SimpleSearch(ctx context.Context, c *Client, opts SearchOptions) ([]*ResponseInfo, error) {
	sr, err := Search(ctx, c, opts)
	if err != nil {
		return nil, err
	}
	defer sr.Close()

	var out []*ResponseInfo
	for {
		info, err, ok := sr.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, info)
	}
}
