package archive

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZipFiles(t *testing.T) {
	dir := t.TempDir()
	var files []string
	for _, name := range []string{"page_2.png", "page_3.png", "notes.txt"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte("content of "+name), 0o644))
		files = append(files, p)
	}

	zipPath := filepath.Join(dir, "out.zip")
	require.NoError(t, ZipFiles(zipPath, files))

	r, err := zip.OpenReader(zipPath)
	require.NoError(t, err)
	defer r.Close()

	require.Len(t, r.File, 3)
	for i, f := range r.File {
		assert.Equal(t, filepath.Base(files[i]), f.Name)

		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		assert.Equal(t, "content of "+f.Name, string(data))
	}
	assert.Equal(t, zip.Store, r.File[0].Method)
	assert.Equal(t, zip.Deflate, r.File[2].Method)
}

func TestZipFilesMissingInput(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "out.zip")

	err := ZipFiles(zipPath, []string{filepath.Join(dir, "missing.png")})
	require.Error(t, err)

	_, statErr := os.Stat(zipPath)
	assert.True(t, os.IsNotExist(statErr), "partial archive should be removed")
}
