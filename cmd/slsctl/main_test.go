package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInfoOnFreshRegion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "r.db")

	var out, errOut bytes.Buffer
	code := run([]string{"info", "--region", path, "--size", "1048576"}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())
	require.Contains(t, out.String(), "root_generation:")
}

func TestAllocNewAndFree(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "r.db")

	var out, errOut bytes.Buffer
	code := run([]string{"alloc", "new", "--region", path, "--size", "1048576", "--bytes", "16"}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())
	require.True(t, strings.HasPrefix(out.String(), "0x"))

	ptrLine := strings.TrimSpace(out.String())
	out.Reset()
	code = run([]string{"alloc", "free", "--region", path, "--ptr", ptrLine, "--bytes", "16"}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())
}

func TestSnapshotLifecycle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "r.db")

	var out, errOut bytes.Buffer
	code := run([]string{"snapshot", "begin", "--region", path, "--size", "1048576"}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())
	id := strings.TrimSpace(out.String())

	out.Reset()
	code = run([]string{"snapshot", "list", "--region", path}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())
	require.Contains(t, out.String(), id)

	out.Reset()
	code = run([]string{"snapshot", "commit", "--region", path, "--id", id}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())
}

func TestCheckpointValidateEmptyPasses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "r.db")

	var out, errOut bytes.Buffer
	code := run([]string{"checkpoint", "validate", "--region", path, "--size", "1048576"}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())
	require.Contains(t, out.String(), "failed entries:  0")
}

func TestUnknownCommandFails(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run([]string{"bogus"}, &out, &errOut)
	require.Equal(t, 1, code)
}

func TestConfigPrintsDefaults(t *testing.T) {
	dir := t.TempDir()
	var out, errOut bytes.Buffer
	code := run([]string{"config", "--region", filepath.Join(dir, "r.db")}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())
	require.Contains(t, out.String(), "region_path")
}
