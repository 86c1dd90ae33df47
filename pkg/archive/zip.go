package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zip"
)

// Entry is one file to be packed, stored under Name inside the archive.
type Entry struct {
	Name string
	Path string
}

// ZipFiles writes files into a new archive at zipPath using their base names.
func ZipFiles(zipPath string, files []string) error {
	entries := make([]Entry, len(files))
	for i, f := range files {
		entries[i] = Entry{Name: filepath.Base(f), Path: f}
	}
	return ZipEntries(zipPath, entries)
}

// ZipEntries writes entries into a new archive at zipPath, in order.
func ZipEntries(zipPath string, entries []Entry) error {
	out, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	if err := WriteZip(out, entries); err != nil {
		out.Close()
		os.Remove(zipPath)
		return err
	}
	return out.Close()
}

// WriteZip streams entries as a zip archive into w.
func WriteZip(w io.Writer, entries []Entry) error {
	zw := zip.NewWriter(w)
	for _, e := range entries {
		if err := addFile(zw, e); err != nil {
			zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return nil
}

func addFile(zw *zip.Writer, e Entry) error {
	src, err := os.Open(e.Path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", e.Path, err)
	}
	defer src.Close()

	// PNG data is already deflated, so store it as-is
	method := zip.Deflate
	if filepath.Ext(e.Name) == ".png" {
		method = zip.Store
	}

	dst, err := zw.CreateHeader(&zip.FileHeader{
		Name:     e.Name,
		Method:   method,
		Modified: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", e.Name, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to write %s: %w", e.Name, err)
	}
	return nil
}
