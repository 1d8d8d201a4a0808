// Package main provides the gestureboard CLI.
//
// Usage:
//
//	gestureboard [flags] <command> [args]
//
// Commands:
//
//	serve      - Run the game server (optionally with a tray menu)
//	calibrate  - Fit the marker size model at known distances
//	config     - Show or initialise the configuration
//
// Configuration:
//
//	The CLI reads ~/.gestureboard/config.yaml and GESTUREBOARD_* environment
//	variables.
package main

import (
	"fmt"
	"os"

	"github.com/ayusman/gestureboard/cmd/gestureboard/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
