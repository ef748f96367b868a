// Command slsctl is the administrative CLI for an SLS region: it opens
// or creates the backing file, prints Genesis and allocator state,
// drives the snapshot engine, runs checkpoint validation/recovery, and
// can expose a Prometheus /metrics endpoint. Grounded on the teacher's
// cmd/treestore/main.go flag-parsing-plus-subsystem-wiring shape,
// generalized from one fixed server command to pflag-based
// subcommands in the style of the pack's other CLI, calvinalkan's tk
// (one function per subcommand, explicit exit codes, no panics).
package main

import (
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/seraph-os/sls/internal/config"
	"github.com/seraph-os/sls/internal/logging"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(out)
		return 1
	}

	cmd := args[0]
	rest := args[1:]

	if cmd == "-h" || cmd == "--help" {
		printUsage(out)
		return 0
	}

	switch cmd {
	case "info":
		return cmdInfo(out, errOut, rest)
	case "alloc":
		return cmdAlloc(out, errOut, rest)
	case "snapshot":
		return cmdSnapshot(out, errOut, rest)
	case "checkpoint":
		return cmdCheckpoint(out, errOut, rest)
	case "serve":
		return cmdServe(out, errOut, rest)
	case "config":
		return cmdConfig(out, errOut, rest)
	default:
		fmt.Fprintf(errOut, "error: unknown command %q\n", cmd)
		printUsage(errOut)
		return 1
	}
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "Usage: slsctl <command> [options]")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  info        Print Genesis and allocator state")
	fmt.Fprintln(out, "  alloc       Allocate or free bytes in a region")
	fmt.Fprintln(out, "  snapshot    List, create, commit, or restore snapshots")
	fmt.Fprintln(out, "  checkpoint  Run invariant validation or recovery")
	fmt.Fprintln(out, "  serve       Expose a Prometheus /metrics endpoint while idle")
	fmt.Fprintln(out, "  config      Print the effective configuration")
}

// commonFlags are accepted by every subcommand that touches a region.
type commonFlags struct {
	region string
	size   int
	cfgOut string
	level  string
}

func bindCommonFlags(fs *flag.FlagSet) *commonFlags {
	c := &commonFlags{}
	fs.StringVar(&c.region, "region", "", "Path to the region file (overrides config)")
	fs.IntVar(&c.size, "size", 0, "Size in bytes when creating a new region")
	fs.StringVar(&c.cfgOut, "config", "", "Explicit config file path")
	fs.StringVar(&c.level, "log-level", "", "Log level: debug, info, warn, error")
	return c
}

func resolveConfig(c *commonFlags) (config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return config.Config{}, fmt.Errorf("getwd: %w", err)
	}
	cfg, err := config.Load(wd, c.cfgOut)
	if err != nil {
		return config.Config{}, err
	}
	if c.region != "" {
		cfg.RegionPath = c.region
	}
	if c.size != 0 {
		cfg.RegionSize = c.size
	}
	if c.level != "" {
		cfg.LogLevel = c.level
	}
	return cfg, nil
}

func setupLogging(cfg config.Config) {
	logging.SetGlobal(logging.New(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	}))
}

func cmdConfig(out, errOut io.Writer, args []string) int {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	c := bindCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}

	cfg, err := resolveConfig(c)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}

	text, err := config.Format(cfg)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	fmt.Fprintln(out, text)
	return 0
}
