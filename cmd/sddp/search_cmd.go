package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/control4/sddp/binding"
	"github.com/control4/sddp/client"
	"github.com/control4/sddp/engine"
	"github.com/control4/sddp/iface"
	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/rtx"
)

// runSearchCommand implements the `search` subcommand: sends a SEARCH and
// prints a JSON object for every matching response collected within the
// wait window.
func runSearchCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	pattern := fs.String("pattern", "*", "SEARCH pattern")
	waitTime := fs.Int("wait-time", 4, "response wait time in seconds")
	includeErrors := fs.Bool("include-error-responses", false, "include non-200 responses")
	maxResponses := fs.Int("max-responses", 0, "stop after this many responses, 0 = no limit")
	logLevel := fs.String("log-level", "info", "log verbosity: debug, info, warn, or error")
	var bindFlags repeatableFlag
	fs.Var(&bindFlags, "b", "local bind address, repeatable")
	var filterFlags repeatableFlag
	fs.Var(&filterFlags, "F", "header filter in name=value form, repeatable")
	if err := fs.Parse(args); err != nil {
		return usageError{err}
	}
	if err := flagx.ArgsFromEnv(fs); err != nil {
		return usageError{err}
	}

	verbose, err := parseLogLevel(*logLevel)
	if err != nil {
		return usageError{err}
	}
	engine.Verbose = verbose

	filters, err := buildFilters(filterFlags)
	if err != nil {
		return err
	}

	addrs, err := iface.Enumerate()
	rtx.Must(err, "enumerating local addresses")
	addrs, err = selectBindAddrs(addrs, bindFlags)
	if err != nil {
		return err
	}

	c, err := client.New(addrs, binding.DefaultGroup)
	rtx.Must(err, "creating client")
	rtx.Must(c.Start(ctx), "starting client")
	defer c.Stop()

	responses, err := client.SimpleSearch(ctx, c, client.SearchOptions{
		Pattern:               *pattern,
		ResponseWaitTime:      time.Duration(*waitTime) * time.Second,
		MaxResponses:          *maxResponses,
		IncludeErrorResponses: *includeErrors,
		FilterHeaders:         filters,
	})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	for _, r := range responses {
		if err := printEvent(eventJSON{
			SDDPVersion:   r.SDDPVersion,
			SrcAddr:       r.Src,
			LocalAddr:     r.Binding,
			Headers:       headersToMap(r.Datagram.Headers()),
			MonotonicTime: r.MonotonicTime,
			UTCTime:       utcField(r.UTCTime),
			Body:          bodyField(r.Datagram.Body()),
			StatusCode:    r.StatusCode,
			Status:        r.Status,
		}); err != nil {
			return err
		}
	}
	return nil
}
