package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRun_QueryToStdout(t *testing.T) {
	dir := t.TempDir()
	ref := writeFile(t, dir, "ref.csv", "0,0\n1,0\n5,5\n")
	query := writeFile(t, dir, "query.csv", "0,0\n")

	for _, mode := range [][]string{nil, {"--naive"}, {"--single"}, {"--tree", "balltree"}} {
		var stdout, stderr bytes.Buffer
		args := append([]string{"-r", ref, "-q", query, "--max", "2"}, mode...)
		require.NoError(t, Run(args, &stdout, &stderr), "mode %v", mode)
		assert.Equal(t, "0,1\n", stdout.String(), "mode %v", mode)
		assert.Contains(t, stderr.String(), "range search finished")
	}
}

func TestRun_SelfSearchToFiles(t *testing.T) {
	dir := t.TempDir()
	ref := writeFile(t, dir, "ref.csv", "0,0\n1,0\n")
	nOut := filepath.Join(dir, "neighbors.csv")
	dOut := filepath.Join(dir, "distances.csv")

	var stdout, stderr bytes.Buffer
	err := Run([]string{"-r", ref, "--max", "1", "-n", nOut, "-d", dOut}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Empty(t, stdout.String())

	neighbors, err := os.ReadFile(nOut)
	require.NoError(t, err)
	assert.Equal(t, "1\n0\n", string(neighbors))

	distances, err := os.ReadFile(dOut)
	require.NoError(t, err)
	assert.Equal(t, "1\n1\n", string(distances))
}

func TestRun_CountOnly(t *testing.T) {
	dir := t.TempDir()
	ref := writeFile(t, dir, "ref.csv", "0\n1\n2\n10\n")

	var stdout, stderr bytes.Buffer
	require.NoError(t, Run([]string{"-r", ref, "--max", "1", "--count-only"}, &stdout, &stderr))
	assert.Equal(t, "queries=4 pairs=4 covered=3\n", stdout.String())
}

func TestRun_VerboseLogsDebug(t *testing.T) {
	dir := t.TempDir()
	ref := writeFile(t, dir, "ref.csv", "0\n1\n2\n")

	var stdout, stderr bytes.Buffer
	require.NoError(t, Run([]string{"-r", ref, "-v"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "built reference tree")
	assert.Contains(t, stderr.String(), "DBG")
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	ref := writeFile(t, dir, "ref.csv", "0,0\n1,0\n")
	query := writeFile(t, dir, "query.csv", "0,0,0\n")

	var stdout, stderr bytes.Buffer
	err := Run([]string{"-r", ref, "-q", query}, &stdout, &stderr)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "dimension mismatch"), err.Error())

	err = Run([]string{"-r", filepath.Join(dir, "missing.csv")}, &stdout, &stderr)
	assert.ErrorIs(t, err, os.ErrNotExist)

	err = Run([]string{"-r", ref, "--metric", "hamming"}, &stdout, &stderr)
	assert.Error(t, err)

	err = Run([]string{"-r", ref, "--tree", "kdtree", "--metric", "minkowski", "--minkowski-p", "0.5"}, &stdout, &stderr)
	assert.Error(t, err)
}
