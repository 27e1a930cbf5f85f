// ABOUTME: Help display for the pipeconf CLI with commands, flags, examples, and environment status.
// ABOUTME: Provides printHelp for usage output and envStatus for configuration detection.
package main

import (
	"fmt"
	"io"
	"os"
)

// helpEnv lists the environment variables shown in help, in display order.
var helpEnv = []string{
	"PIPECONF_HOME",
	"PIPECONF_BIND",
	"PIPECONF_DB",
	"PIPECONF_SEED",
	"PIPECONF_SECRET",
	"PIPECONF_AUTH_TOKEN",
	"PIPECONF_ALLOW_REMOTE",
	"PIPECONF_SERVER",
}

// printHelp writes the usage message to w.
func printHelp(w io.Writer, ver string) {
	fmt.Fprintf(w, "pipeconf %s: pipeline configuration console\n", ver)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  pipeconf serve [-data-dir <dir>] [-seed <file>]   Start the web console and JSON API")
	fmt.Fprintln(w, "  pipeconf edit [-server <url>] <pipeline>           Edit a pipeline in the terminal")
	fmt.Fprintln(w, "  pipeconf validate <file>                           Validate a JSON or YAML pipeline document")
	fmt.Fprintln(w, "  pipeconf mcp [-data-dir <dir>]                     Serve MCP tools on stdio")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -data-dir <dir>   Data directory (default: $XDG_DATA_HOME/pipeconf)")
	fmt.Fprintln(w, "  -seed <file>      Import pipelines from a JSON or YAML file at startup")
	fmt.Fprintln(w, "  -server <url>     Console base URL for edit (default: http://"+defaultServerHost+")")
	fmt.Fprintln(w, "  -token <token>    Bearer token for edit (default: $PIPECONF_AUTH_TOKEN)")
	fmt.Fprintln(w, "  -version          Print version and exit")
	fmt.Fprintln(w, "  -help             Show this help")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  pipeconf serve -seed pipelines.yaml")
	fmt.Fprintln(w, "  pipeconf edit yourproject")
	fmt.Fprintln(w, "  pipeconf validate yourproject.json")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment:")
	for _, key := range helpEnv {
		fmt.Fprintf(w, "  %-22s %s\n", key, envStatus(key))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Remote binds require PIPECONF_ALLOW_REMOTE=true and PIPECONF_AUTH_TOKEN.")
}

// envStatus returns "[set]" if the named environment variable is non-empty,
// or "[not set]" otherwise.
func envStatus(key string) string {
	if os.Getenv(key) != "" {
		return "[set]"
	}
	return "[not set]"
}
