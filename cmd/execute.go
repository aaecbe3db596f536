// Package cmd contains the command line entry points for verdin.
package cmd

import (
	"fmt"
	"os"
)

// Execute is the main entry point for the verdin CLI.
// It handles flag parsing and command routing, leaving main.go as a
// minimal entry point.
func Execute() error {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve":
			return runServe(os.Args[2:])
		case "version", "--version", "-v":
			printVersionInfo()
			return nil
		case "help", "--help", "-h":
			printHelp()
			return nil
		default:
			printHelp()
			return fmt.Errorf("unknown command: %s", os.Args[1])
		}
	}

	printHelp()
	return nil
}

func printHelp() {
	fmt.Println(`verdin - retrieval-augmented question answering over your documents

Usage:
  verdin serve [flags]   Start the HTTP API server
  verdin version         Show version information
  verdin help            Show this help

Serve flags:
  -addr string           Listen address (overrides configuration)

Configuration is read from ~/.verdin/config.yaml or ./config.yaml,
with VERDIN_* environment variables taking precedence.`)
}
