package app

import (
	"fmt"
	"io"
	"os"
)

var (
	version   = "0.0.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func Main(args []string) int {
	if len(args) < 2 {
		printHelp(os.Stderr)
		return 2
	}

	switch args[1] {
	case "serve":
		return serveCmd(args[2:])
	case "version":
		return versionCmd(args[2:])
	case "help", "-h", "--help":
		printHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[1])
		printHelp(os.Stderr)
		return 2
	}
}

// Unrequested help goes to stderr; stdout carries protocol output.
func printHelp(w io.Writer) {
	fmt.Fprintln(w, "hamcp")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  hamcp serve [--config ./hamcp.yaml] [--dotenv ./.env] [--token-ref env:SUPERVISOR_TOKEN] [--timeout 30s] [--log-level info] [--log-file ./hamcp.log]")
	fmt.Fprintln(w, "              [--http-listen 127.0.0.1:8099] [--http-token-ref env:HAMCP_HTTP_TOKEN] [--stdio=true] [--otel-endpoint http://collector:4318] [--otel-insecure]")
	fmt.Fprintln(w, "  hamcp version [--long] [--json]")
}
