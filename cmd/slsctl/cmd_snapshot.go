package main

import (
	"fmt"
	"io"

	flag "github.com/spf13/pflag"

	"github.com/seraph-os/sls/pkg/sls"
)

func cmdSnapshot(out, errOut io.Writer, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "error: snapshot requires a subcommand: list, begin, commit, abort, restore")
		return 1
	}

	switch args[0] {
	case "list":
		return cmdSnapshotList(out, errOut, args[1:])
	case "begin":
		return cmdSnapshotBegin(out, errOut, args[1:])
	case "commit":
		return cmdSnapshotCommit(out, errOut, args[1:])
	case "abort":
		return cmdSnapshotAbort(out, errOut, args[1:])
	case "restore":
		return cmdSnapshotRestore(out, errOut, args[1:])
	default:
		fmt.Fprintf(errOut, "error: unknown snapshot subcommand %q\n", args[0])
		return 1
	}
}

func openStoreForSnapshot(errOut io.Writer, fs *flag.FlagSet, args []string) (*sls.Store, uint64, int) {
	c := bindCommonFlags(fs)
	id := fs.Uint64("id", 0, "Snapshot id")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return nil, 0, 1
	}

	cfg, err := resolveConfig(c)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return nil, 0, 1
	}
	setupLogging(cfg)

	st, err := sls.Open(cfg.RegionPath, cfg.RegionSize)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return nil, 0, 1
	}
	return st, *id, 0
}

func cmdSnapshotList(out, errOut io.Writer, args []string) int {
	fs := flag.NewFlagSet("snapshot list", flag.ContinueOnError)
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

	for _, id := range st.Snapshots.List() {
		snap, err := st.Snapshots.Get(id)
		if err != nil {
			continue
		}
		fmt.Fprintf(out, "%d  %s\n", id, snap.State())
	}
	return 0
}

func cmdSnapshotBegin(out, errOut io.Writer, args []string) int {
	fs := flag.NewFlagSet("snapshot begin", flag.ContinueOnError)
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

	snap, err := st.BeginSnapshot()
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	if err := st.Snapshots.IncludeAll(snap); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	if err := st.Snapshots.Activate(snap); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	fmt.Fprintf(out, "%d\n", snap.ID)
	return 0
}

func cmdSnapshotCommit(out, errOut io.Writer, args []string) int {
	fs := flag.NewFlagSet("snapshot commit", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	st, id, code := openStoreForSnapshot(errOut, fs, args)
	if code != 0 {
		return code
	}
	defer st.Close()

	snap, err := st.Snapshots.Get(id)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	if err := st.Snapshots.Commit(snap); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	fmt.Fprintln(out, "committed")
	return 0
}

func cmdSnapshotAbort(out, errOut io.Writer, args []string) int {
	fs := flag.NewFlagSet("snapshot abort", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	st, id, code := openStoreForSnapshot(errOut, fs, args)
	if code != 0 {
		return code
	}
	defer st.Close()

	snap, err := st.Snapshots.Get(id)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	st.Snapshots.Abort(snap)
	fmt.Fprintln(out, "aborted")
	return 0
}

func cmdSnapshotRestore(out, errOut io.Writer, args []string) int {
	fs := flag.NewFlagSet("snapshot restore", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	st, id, code := openStoreForSnapshot(errOut, fs, args)
	if code != 0 {
		return code
	}
	defer st.Close()

	snap, err := st.Snapshots.Get(id)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	if err := st.RestoreSnapshot(snap); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	fmt.Fprintln(out, "restored")
	return 0
}
