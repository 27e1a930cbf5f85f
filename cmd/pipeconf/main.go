// ABOUTME: CLI entrypoint for pipeconf with serve, edit, validate, and mcp subcommands.
// ABOUTME: Wires the pipeline store, sealer, web console, terminal view, and MCP server together.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/2389-research/pipeconf/mcpserver"
	"github.com/2389-research/pipeconf/pipeline"
	"github.com/2389-research/pipeconf/pipeline/secret"
	"github.com/2389-research/pipeconf/store"
	"github.com/2389-research/pipeconf/tui"
	"github.com/2389-research/pipeconf/web"
	"github.com/2389-research/pipeconf/widget"
)

var version = "dev"

const defaultServerHost = web.DefaultBind

func main() {
	loadDotEnvAuto()
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches to a subcommand and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("pipeconf", flag.ContinueOnError)
	fs.SetOutput(stderr)
	showVersion := fs.Bool("version", false, "Print version and exit")
	fs.Usage = func() { printHelp(stderr, version) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *showVersion {
		fmt.Fprintf(stdout, "pipeconf %s\n", version)
		return 0
	}
	if fs.NArg() == 0 {
		printHelp(stderr, version)
		return 0
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "serve":
		return runServe(rest, stderr)
	case "edit":
		return runEdit(rest, stderr)
	case "validate":
		return runValidate(rest, stdout, stderr)
	case "mcp":
		return runMCP(rest, stderr)
	case "help":
		printHelp(stdout, version)
		return 0
	default:
		fmt.Fprintf(stderr, "error: unknown command %q\n\n", cmd)
		printHelp(stderr, version)
		return 2
	}
}

func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

// newSealer returns nil when no secret is configured.
func newSealer(secretValue string) (pipeline.Sealer, error) {
	if secretValue == "" {
		return nil, nil
	}
	s, err := secret.New(secretValue)
	if err != nil {
		return nil, fmt.Errorf("PIPECONF_SECRET: %w", err)
	}
	return s, nil
}

// opener is implemented by sealers that can also decrypt, such as *secret.Sealer.
type opener interface {
	Open(ciphertext string) (string, error)
}

// undecryptable names the secure variables of p whose encrypted value the
// sealer cannot open. It returns nil when the sealer cannot decrypt at all.
func undecryptable(p *pipeline.Pipeline, sealer pipeline.Sealer) []string {
	o, ok := sealer.(opener)
	if !ok {
		return nil
	}
	var names []string
	for _, v := range p.EnvironmentVariables().Secure() {
		if v.EncryptedValue() == "" {
			continue
		}
		if _, err := o.Open(v.EncryptedValue()); err != nil {
			names = append(names, v.Name())
		}
	}
	return names
}

func decodeOptions(sealer pipeline.Sealer) []pipeline.DecodeOption {
	if sealer == nil {
		return nil
	}
	return []pipeline.DecodeOption{pipeline.WithSealer(sealer)}
}

// backend is the store and sealer shared by serve and mcp.
type backend struct {
	cfg    *web.Config
	store  store.Store
	sealer pipeline.Sealer
}

// openBackend loads configuration, opens the SQLite store, and imports the
// seed file when one is configured.
func openBackend(ctx context.Context, dataDir, seedPath string) (*backend, error) {
	home, err := resolveDataDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	if dataDir != "" {
		os.Setenv("PIPECONF_HOME", dataDir)
	}
	cfg, err := web.ConfigFromEnv(home)
	if err != nil {
		return nil, err
	}
	if seedPath != "" {
		cfg.SeedPath = seedPath
	}

	sealer, err := newSealer(cfg.Secret)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Home, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	st, err := store.OpenSqlite(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	if cfg.SeedPath != "" {
		ps, err := store.LoadSeedFile(cfg.SeedPath, decodeOptions(sealer)...)
		if err == nil {
			_, err = store.Seed(ctx, st, ps)
		}
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("seed %s: %w", cfg.SeedPath, err)
		}
	}
	return &backend{cfg: cfg, store: st, sealer: sealer}, nil
}

// runServe starts the web console and JSON API.
func runServe(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dataDir := fs.String("data-dir", "", "Data directory (default: $XDG_DATA_HOME/pipeconf)")
	seed := fs.String("seed", "", "Import pipelines from a JSON or YAML file at startup")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctx, cancel := signalContext()
	defer cancel()

	b, err := openBackend(ctx, *dataDir, *seed)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer b.store.Close()

	srv, err := web.NewServer(web.ServerConfig{
		Addr:      b.cfg.Bind,
		Store:     b.store,
		Sealer:    b.sealer,
		AuthToken: b.cfg.AuthToken,
	})
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer srv.Close()

	if b.sealer == nil {
		fmt.Fprintln(stderr, "warning: PIPECONF_SECRET is not set; plaintext secure variables will be rejected")
	}
	fmt.Fprintf(stderr, "pipeconf %s listening on http://%s (data: %s)\n", version, b.cfg.Bind, b.cfg.Home)
	if err := srv.ListenAndServe(ctx); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// runMCP serves the MCP tools on stdio. stdout carries the protocol, so all
// diagnostics go to stderr.
func runMCP(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dataDir := fs.String("data-dir", "", "Data directory (default: $XDG_DATA_HOME/pipeconf)")
	seed := fs.String("seed", "", "Import pipelines from a JSON or YAML file at startup")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	log.SetOutput(stderr)

	ctx, cancel := signalContext()
	defer cancel()

	b, err := openBackend(ctx, *dataDir, *seed)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer b.store.Close()

	srv, err := mcpserver.New(mcpserver.Config{Store: b.store, Sealer: b.sealer, Version: version})
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if err := srv.Run(ctx); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// pipelineDocumentURL builds the API URL of a pipeline on a console server.
func pipelineDocumentURL(server, name string) (string, error) {
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", server, err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/admin/pipelines/" + name
	u.RawPath = ""
	return u.String(), nil
}

// runEdit opens the terminal configuration view against a running server.
func runEdit(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	server := fs.String("server", envOr("PIPECONF_SERVER", "http://"+defaultServerHost), "Console base URL")
	token := fs.String("token", os.Getenv("PIPECONF_AUTH_TOKEN"), "Bearer token")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: pipeconf edit [-server <url>] <pipeline>")
		return 2
	}

	docURL, err := pipelineDocumentURL(*server, fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	ctx, cancel := signalContext()
	defer cancel()

	// Log lines would corrupt the alternate screen.
	log.SetOutput(io.Discard)
	defer log.SetOutput(os.Stderr)

	w := widget.New(widget.Config{
		URL:    docURL,
		Source: &widget.HTTPSource{Token: *token},
	})
	if err := tui.Run(ctx, w); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if err := w.Err(); err != nil {
		fmt.Fprintf(stderr, "error: could not load %s: %v\n", docURL, err)
		return 1
	}
	if w.Dirty() {
		fmt.Fprintln(stderr, "warning: exited with unsaved changes")
	}
	return 0
}

// runValidate decodes and validates every pipeline document in a JSON or YAML file.
func runValidate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: pipeconf validate <file>")
		return 2
	}
	path := fs.Arg(0)

	sealer, err := newSealer(os.Getenv("PIPECONF_SECRET"))
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	ps, err := store.LoadSeedFile(path, decodeOptions(sealer)...)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	failed := false
	for _, p := range ps {
		err := pipeline.Validate(p)
		sealed := undecryptable(p, sealer)
		if err == nil && len(sealed) == 0 {
			fmt.Fprintf(stdout, "%s: valid\n", p.Name())
			continue
		}
		failed = true
		for _, name := range sealed {
			fmt.Fprintf(stderr, "[error] %s: environment_variables[%s]: encrypted value cannot be decrypted with PIPECONF_SECRET\n", p.Name(), name)
		}
		if err == nil {
			continue
		}
		var verr *pipeline.ValidationError
		if !errors.As(err, &verr) {
			fmt.Fprintf(stderr, "[error] %s: %v\n", p.Name(), err)
			continue
		}
		for _, field := range verr.FieldNames() {
			for _, msg := range verr.Fields[field] {
				fmt.Fprintf(stderr, "[error] %s: %s: %s\n", p.Name(), field, msg)
			}
		}
	}

	if failed {
		fmt.Fprintln(stderr, "Validation failed.")
		return 1
	}
	return 0
}

func envOr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
