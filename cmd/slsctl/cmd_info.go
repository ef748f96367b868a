package main

import (
	"fmt"
	"io"

	flag "github.com/spf13/pflag"

	"github.com/seraph-os/sls/pkg/sls"
)

func cmdInfo(out, errOut io.Writer, args []string) int {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
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
	setupLogging(cfg)

	st, err := sls.Open(cfg.RegionPath, cfg.RegionSize)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	defer st.Close()

	g := st.Region.Genesis()
	fmt.Fprintf(out, "path:              %s\n", st.Region.Path())
	fmt.Fprintf(out, "size:              %d bytes\n", st.Region.Size())
	fmt.Fprintf(out, "root_generation:   %d\n", g.RootGeneration)
	fmt.Fprintf(out, "app_root_offset:   0x%x\n", g.AppRootOffset)
	fmt.Fprintf(out, "next_alloc_offset: 0x%x\n", g.NextAllocOffset)
	fmt.Fprintf(out, "current_epoch:     %d\n", g.CurrentEpoch)
	fmt.Fprintf(out, "commit_count:      %d\n", g.CommitCount)
	fmt.Fprintf(out, "abort_count:       %d\n", g.AbortCount)
	fmt.Fprintf(out, "active_txns:       %d\n", st.Txns.ActiveCount())
	fmt.Fprintf(out, "snapshots:         %v\n", st.Snapshots.List())
	return 0
}
