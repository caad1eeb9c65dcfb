// Command sddp is the SDDP command-line front end: server, search, and
// version subcommands. It is a thin wrapper around the sddp/server and
// sddp/client packages; argument parsing, JSON output, and signal
// handling live here, none of it belongs in the core.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
)

// version is the package version printed by the version subcommand.
var version = "0.1.0-dev"

func init() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: sddp <server|search|version> [flags]")
		return 2
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	var err error
	switch args[0] {
	case "server":
		err = runServerCommand(ctx, args[1:])
	case "search":
		err = runSearchCommand(ctx, args[1:])
	case "version":
		fmt.Println(version)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", args[0])
		return 2
	}

	if err != nil {
		if isUsageError(err) {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		log.Println(err)
		return 1
	}
	return 0
}

// usageError marks an error as an argument-parsing error: exit code 2
// rather than 1.
type usageError struct{ err error }

func (u usageError) Error() string { return u.err.Error() }
func (u usageError) Unwrap() error { return u.err }

func isUsageError(err error) bool {
	_, ok := err.(usageError)
	return ok
}
