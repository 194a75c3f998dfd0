// SPDX-License-Identifier: MIT
package main

import (
	"fmt"
	"os"

	"sampler/cmd"
	applog "sampler/internal/log"
	"sampler/pkg/build"
)

// main is the entry point for the sampler.
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load configuration
//
// 2. Concurrent Phase (Hot Path):
//   - Render passes run on the session's scheduler
//   - The audio callback drains the frame queue
//
// 3. Shutdown Phase (Cold Path):
//   - Stop the audio callback, then the session and transports
func main() {
	// Development builds carry no ldflags and keep the defaults.
	if err := build.Initialize(); err != nil {
		applog.Debugf("Build: %v, using development build information", err)
	}

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
