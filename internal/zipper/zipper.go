// Package zipper packages a directory tree into a ZIP archive: the
// "given a directory of files, emit an archive" half of the output
// stage, implemented directly on archive/zip.
package zipper

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ArchiveDir walks root and writes every regular file it contains into
// a new ZIP archive at w, with archive-internal paths relative to root
// using forward slashes (the portable convention archive/zip expects).
func ArchiveDir(w io.Writer, root string) error {
	zw := zip.NewWriter(w)

	err := filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("zipper: computing relative path for %s: %w", path, err)
		}
		return addFile(zw, path, filepath.ToSlash(rel), info)
	})
	if err != nil {
		_ = zw.Close()
		return fmt.Errorf("zipper: archiving %s: %w", root, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("zipper: finalizing archive: %w", err)
	}
	return nil
}

func addFile(zw *zip.Writer, path, archiveName string, info os.FileInfo) error {
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("building zip header for %s: %w", path, err)
	}
	header.Name = archiveName
	header.Method = zip.Deflate

	entry, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("creating zip entry %s: %w", archiveName, err)
	}

	f, err := os.Open(path) //nolint:gosec // path comes from a filepath.Walk over a job-owned scratch dir
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(entry, f); err != nil {
		return fmt.Errorf("writing %s into archive: %w", path, err)
	}
	return nil
}
