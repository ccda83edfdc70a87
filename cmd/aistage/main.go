package main

import (
	"fmt"
	"os"

	"github.com/aistage/aistage/cmd/aistage/serve"
	"github.com/aistage/aistage/cmd/aistage/version"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		serve.Run(os.Args[2:])
	case "version":
		version.Run()
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`aistage - AI UDF Server for Warehouse Stages

Usage:
  aistage <command> [options]

Commands:
  serve     Start the UDF server
  version   Print version information
  help      Show this help message

Run 'aistage <command> --help' for more information on a command.`)
}
