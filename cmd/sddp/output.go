package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	sddp "github.com/control4/sddp"
)

// eventJSON is the line-delimited JSON object the CLI prints for each
// NOTIFY (server) or response (search).
type eventJSON struct {
	SDDPVersion   string                 `json:"sddp_version"`
	SrcAddr       string                 `json:"src_addr"`
	LocalAddr     string                 `json:"local_addr,omitempty"`
	Headers       map[string]interface{} `json:"headers"`
	MonotonicTime float64                `json:"monotonic_time"`
	UTCTime       string                 `json:"utc_time"`
	Body          string                 `json:"body,omitempty"`
	StatusCode    int                    `json:"status_code,omitempty"`
	Status        string                 `json:"status,omitempty"`
}

func headersToMap(h *sddp.Headers) map[string]interface{} {
	out := make(map[string]interface{}, h.Len())
	for _, name := range h.Names() {
		if v, ok := h.Decoded(name); ok {
			out[name] = v
			continue
		}
		if v, ok := h.Raw(name); ok {
			out[name] = v
		}
	}
	return out
}

func printEvent(e eventJSON) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func bodyField(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(body)
}

func utcField(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
