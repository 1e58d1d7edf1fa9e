// Command shiftctl is the cashier's terminal client for the shift API.
//
// Every invocation is a session (re)start: the last snapshot is loaded from
// the local session file, then refreshed from the backend. When the backend
// is unreachable the snapshot is shown marked stale and mutations are
// refused.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel)

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
