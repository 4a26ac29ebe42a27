// Command qdirstat is the headless CLI front end for the scan engine:
// it drives a Tree to completion on the calling goroutine via
// queue.RunUntilIdle and prints a summary, with subcommands for cache
// round-tripping and running a named cleanup. Grounded on the
// teacher's cmd/godu/main.go flag-parsing entry point, restructured
// onto spf13/cobra the way this corpus's other CLI tools (azcopy,
// gcsfuse, rcc, dug) dispatch subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	if os.Getenv("QDIRSTAT_DEBUG") != "" {
		logger.SetLevel(logrus.DebugLevel)
	}

	if err := newRootCmd(logger).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "qdirstat:", err)
		os.Exit(1)
	}
}
