package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/pdf-toolkit/internal/models"
	"github.com/feichai0017/pdf-toolkit/internal/testutil"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestMergeCommand(t *testing.T) {
	dir := t.TempDir()
	a := testutil.WritePDF(t, dir, "a.pdf", 100)
	b := testutil.WritePDF(t, dir, "b.pdf", 200, 300)
	out := filepath.Join(dir, "merged.pdf")

	stdout, err := execute(t, "merge", a, b, "-o", out)
	require.NoError(t, err, stdout)
	assert.Contains(t, stdout, "(3 pages)")
	assert.Equal(t, []int{100, 200, 300}, testutil.PageWidths(t, out))
}

func TestSplitCommandRejectsBadRange(t *testing.T) {
	dir := t.TempDir()
	src := testutil.WritePDF(t, dir, "src.pdf", 100, 200)

	_, err := execute(t, "split", src, "--start", "2", "--end", "5", "-o", filepath.Join(dir, "out.pdf"))
	assert.ErrorIs(t, err, models.ErrInvalidPageRange)

	out := filepath.Join(dir, "split.pdf")
	_, err = execute(t, "split", src, "--start", "2", "--end", "2", "-o", out)
	require.NoError(t, err)
	assert.Equal(t, []int{200}, testutil.PageWidths(t, out))
}

func TestInfoCommand(t *testing.T) {
	src := testutil.WritePDF(t, t.TempDir(), "src.pdf", 100, 200, 300)

	stdout, err := execute(t, "info", src)
	require.NoError(t, err)

	var meta models.DocumentMetadata
	require.NoError(t, json.Unmarshal([]byte(stdout), &meta))
	assert.Equal(t, 3, meta.Pages)
}
