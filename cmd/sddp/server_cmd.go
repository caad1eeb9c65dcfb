package main

import (
	"context"
	"flag"
	"time"

	sddp "github.com/control4/sddp"
	"github.com/control4/sddp/engine"
	"github.com/control4/sddp/iface"
	"github.com/control4/sddp/server"
	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"
)

// runServerCommand implements the `server` subcommand: runs the SDDP
// server until SIGINT/SIGTERM, printing a JSON object for every received
// NOTIFY.
func runServerCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	advertiseInterval := fs.Int("advertise-interval", 1200, "advertiser interval in seconds")
	promAddr := fs.String("prom", "", "Prometheus metrics export address and port, e.g. :9090; empty disables export")
	logLevel := fs.String("log-level", "info", "log verbosity: debug, info, warn, or error")
	var headerFlags repeatableFlag
	fs.Var(&headerFlags, "H", "header in name=value form, repeatable")
	var bindFlags repeatableFlag
	fs.Var(&bindFlags, "b", "local bind address, repeatable")
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

	headers, err := buildHeaders(headerFlags)
	if err != nil {
		return err
	}

	addrs, err := iface.Enumerate()
	rtx.Must(err, "enumerating local addresses")
	addrs, err = selectBindAddrs(addrs, bindFlags)
	if err != nil {
		return err
	}

	advertisement := sddp.NewDatagram(sddp.BuildNotifyAliveStatement(1, 0), headers, nil)

	srv, err := server.New(addrs, advertisement, time.Duration(*advertiseInterval)*time.Second)
	rtx.Must(err, "creating server")

	if *promAddr != "" {
		promSrv := prometheusx.MustStartPrometheus(*promAddr)
		defer promSrv.Shutdown(ctx)
	}

	srv.OnNotify(func(ctx context.Context, info *server.AdvertisementInfo) error {
		return printEvent(eventJSON{
			SDDPVersion:   info.SDDPVersion,
			SrcAddr:       info.Src,
			LocalAddr:     info.Binding.UnicastAddr.String(),
			Headers:       headersToMap(info.Datagram.Headers()),
			MonotonicTime: info.MonotonicTime,
			UTCTime:       utcField(info.UTCTime),
			Body:          bodyField(info.Datagram.Body()),
		})
	})

	rtx.Must(srv.Start(ctx), "starting server")

	select {
	case <-ctx.Done():
		srv.Stop()
	case <-srv.Done():
		// A transport error already set the final result; nothing to do.
	}
	return srv.WaitForDone()
}
