// Package cmd wires up the CLI flags and dispatches to the relay core.
package cmd

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"

	flag "github.com/spf13/pflag"

	"rnc/config"
	"rnc/internal/core"
	"rnc/internal/errors"
	"rnc/internal/metrics"
	"rnc/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X rnc/cmd.version=1.1.0"
var version = "1.0.0" //nolint:gochecknoglobals

// options are the flags that steer the CLI itself rather than the relay.
type options struct {
	showVersion bool
	showHelp    bool
	dryRun      bool
}

// Execute parses args and runs the selected relay mode.
func Execute(ctx context.Context, args []string) error {
	cfg, opts, fs, err := parse(args)
	if err != nil {
		return err
	}

	if opts.showHelp {
		printUsage(os.Stderr, fs)
		return nil
	}
	if opts.showVersion {
		fmt.Printf("rnc %s\n", version)
		return nil
	}
	if len(args) == 0 && !cfg.Listen && !cfg.HasHost {
		printUsage(os.Stderr, fs)
		return &errors.ConfigError{Field: "hostname", Message: "missing operand"}
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}

	// ── build components ─────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	logger.SetColor(util.IsTerminal(os.Stderr))

	collector := metrics.New()
	mode, err := core.Build(cfg, logger, collector)
	if err != nil {
		return err
	}

	if opts.dryRun {
		fmt.Fprintln(os.Stderr, describe(mode))
		return nil
	}

	if cfg.MetricsAddr != "" {
		ln, err := net.Listen("tcp", cfg.MetricsAddr)
		if err != nil {
			return errors.Wrap("metrics", cfg.MetricsAddr, err)
		}
		logger.Verbose("metrics on http://%s/metrics", ln.Addr())
		go func() {
			if err := metrics.Serve(ctx, ln, collector); err != nil {
				logger.Warn("metrics: %v", err)
			}
		}()
	}

	if util.IsTerminal(os.Stdin) {
		logger.Verbose("reading stdin from the terminal; Ctrl-D sends end-of-stream")
	}

	err = mode.Run(ctx)
	if logger.Enabled(util.LogDebug) {
		logger.Debug("metrics: %s", collector.JSON())
	}
	return err
}

// parse applies defaults, then the environment, then the command line.
func parse(args []string) (*config.Config, options, *flag.FlagSet, error) {
	var opts options
	cfg := config.Default()
	if err := config.LoadFromEnv(cfg); err != nil {
		return nil, opts, nil, err
	}

	fs := flag.NewFlagSet("rnc", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	// ── address family ───────────────────────────────────────────
	fs.BoolVarP(&cfg.IPv4, "ipv4", "4", cfg.IPv4, "Use IPv4 only")
	fs.BoolVarP(&cfg.IPv6, "ipv6", "6", cfg.IPv6, "Use IPv6 only")

	// ── mode ─────────────────────────────────────────────────────
	fs.BoolVarP(&cfg.Listen, "listen", "l", cfg.Listen, "Listen for inbound connections")
	fs.BoolVarP(&cfg.KeepOpen, "keep-open", "k", cfg.KeepOpen, "Accept multiple connections (with -l)")
	fs.IntVar(&cfg.BusCapacity, "bus-capacity", cfg.BusCapacity, "Stdin chunks buffered for slow clients (with -l)")

	// ── output ───────────────────────────────────────────────────
	verbose := fs.CountP("verbose", "v", "Increase verbosity (repeatable)")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Serve Prometheus metrics on this address")

	fs.BoolVar(&opts.dryRun, "dry-run", false, "Resolve and validate, then exit")
	fs.BoolVar(&opts.showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&opts.showHelp, "help", "h", false, "Show this help")

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return nil, opts, fs, &errors.ConfigError{Field: "flags", Message: err.Error(), Hint: "see rnc --help"}
	}
	if *verbose > 0 {
		cfg.Verbose = *verbose
	}

	// ── positional arguments ─────────────────────────────────────
	if err := parsePositional(cfg, fs.Args()); err != nil {
		return nil, opts, fs, err
	}
	return cfg, opts, fs, nil
}

// ── helpers ──────────────────────────────────────────────────────────

// parsePositional reads [hostname] [port].  In listen mode a lone
// argument that parses as a port is the port, so "rnc -l 1234" listens
// on port 1234 of the unspecified address.
func parsePositional(cfg *config.Config, remaining []string) error {
	switch len(remaining) {
	case 0:
		return nil
	case 1:
		if cfg.Listen && config.LooksLikePort(remaining[0]) {
			port, _ := config.ParsePort(remaining[0])
			cfg.Port = port
			return nil
		}
		cfg.Host, cfg.HasHost = remaining[0], true
		return nil
	case 2:
		port, err := config.ParsePort(remaining[1])
		if err != nil {
			return err
		}
		cfg.Host, cfg.HasHost = remaining[0], true
		cfg.Port = port
		return nil
	default:
		return &errors.ConfigError{
			Field:   "args",
			Value:   remaining[2:],
			Message: "too many arguments",
			Hint:    "usage: rnc [options] [hostname] [port]",
		}
	}
}

func describe(mode core.Mode) string {
	switch m := mode.(type) {
	case *core.ListenMode:
		if m.KeepOpen {
			return fmt.Sprintf("listen %s (keep-open, bus %d)", m.Endpoint, m.BusCapacity)
		}
		return fmt.Sprintf("listen %s", m.Endpoint)
	case *core.ConnectMode:
		return fmt.Sprintf("connect %s", m.Endpoint)
	default:
		return fmt.Sprintf("%T", mode)
	}
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, `rnc - bidirectional TCP relay v%s

Usage:
  rnc [options] <hostname> [port]             Connect
  rnc -l [options] [hostname] [port]          Listen
  rnc -l [options] <port>                     Listen on all addresses

The port defaults to %d.

Options:
`, version, config.DefaultPort)
	fmt.Fprint(w, fs.FlagUsages())
	fmt.Fprint(w, `
Environment:
  RNC_HOST RNC_PORT RNC_LISTEN RNC_KEEP_OPEN RNC_IPV4 RNC_IPV6
  RNC_VERBOSE RNC_METRICS_ADDR RNC_BUS_CAPACITY   (flags win)

Examples:
  rnc example.com 80                          Connect
  rnc -l 8080                                 Listen on [::]:8080
  rnc -lk -4 9000 < feed.txt                  Broadcast a file to every client
  echo "hello" | rnc host.example.com 9000    Pipe data
`)
}
