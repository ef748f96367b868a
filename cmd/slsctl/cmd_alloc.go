package main

import (
	"fmt"
	"io"

	flag "github.com/spf13/pflag"

	"github.com/seraph-os/sls/pkg/region"
	"github.com/seraph-os/sls/pkg/sls"
)

func cmdAlloc(out, errOut io.Writer, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "error: alloc requires a subcommand: new, free")
		return 1
	}

	switch args[0] {
	case "new":
		return cmdAllocNew(out, errOut, args[1:])
	case "free":
		return cmdAllocFree(out, errOut, args[1:])
	default:
		fmt.Fprintf(errOut, "error: unknown alloc subcommand %q\n", args[0])
		return 1
	}
}

func cmdAllocNew(out, errOut io.Writer, args []string) int {
	fs := flag.NewFlagSet("alloc new", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	c := bindCommonFlags(fs)
	bytes := fs.Int("bytes", 0, "Number of bytes to allocate")
	pages := fs.Bool("pages", false, "Allocate whole pages instead of a byte span")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	if *bytes <= 0 {
		fmt.Fprintln(errOut, "error: --bytes must be positive")
		return 1
	}

	cfg, err := resolveConfig(c)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	setupLogging(cfg)

	st, err := sls.Open(cfg.RegionPath, cfg.RegionSize)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	defer st.Close()

	var ptr uint64
	if *pages {
		ptr = st.Alloc.AllocPages(*bytes)
	} else {
		ptr = st.Alloc.Alloc(*bytes)
	}
	if ptr == region.VoidOffset {
		fmt.Fprintln(errOut, "error: allocation failed, region exhausted")
		return 1
	}
	fmt.Fprintf(out, "0x%x\n", ptr)
	return 0
}

func cmdAllocFree(out, errOut io.Writer, args []string) int {
	fs := flag.NewFlagSet("alloc free", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	c := bindCommonFlags(fs)
	ptr := fs.Uint64("ptr", 0, "Offset to free")
	bytes := fs.Int("bytes", 0, "Size originally allocated at ptr")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}

	cfg, err := resolveConfig(c)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	setupLogging(cfg)

	st, err := sls.Open(cfg.RegionPath, cfg.RegionSize)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	defer st.Close()

	st.Alloc.Free(*ptr, *bytes)
	fmt.Fprintln(out, "freed")
	return 0
}
