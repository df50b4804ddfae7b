// Package archive writes the final release archive. The whole pruned build
// directory goes into one zip file, with entry names relative to the build
// directory root.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// CreateZip archives every file under sourceDir, recursively, into a zip
// file at destPath. Entry names are slash-separated paths relative to
// sourceDir. Directories themselves are not stored, only files.
func CreateZip(destPath, sourceDir string) (err error) {
	out, err := os.Create(filepath.Clean(destPath))
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}

	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close archive: %w", closeErr)
		}
	}()

	writer := zip.NewWriter(out)

	defer func() {
		if closeErr := writer.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("finalize archive: %w", closeErr)
		}
	}()

	sourceDir = filepath.Clean(sourceDir)

	err = filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(sourceDir, path)
		if relErr != nil {
			return relErr
		}

		return addFile(writer, filepath.ToSlash(rel), path)
	})
	if err != nil {
		return fmt.Errorf("archive %s: %w", sourceDir, err)
	}

	return nil
}

// addFile copies one file into the archive under the given entry name.
func addFile(writer *zip.Writer, name, path string) error {
	in, err := os.Open(filepath.Clean(path))
	if err != nil {
		return err
	}

	// Best-effort close, the read side is not mutated.
	defer func() {
		_ = in.Close()
	}()

	entry, err := writer.Create(name)
	if err != nil {
		return err
	}

	if _, err = io.Copy(entry, in); err != nil {
		return fmt.Errorf("write entry %s: %w", name, err)
	}

	return nil
}

// ListZip returns the sorted entry names of a zip file.
func ListZip(path string) ([]string, error) {
	reader, err := zip.OpenReader(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	defer func() {
		_ = reader.Close()
	}()

	names := make([]string, 0, len(reader.File))
	for _, file := range reader.File {
		names = append(names, file.Name)
	}

	sort.Strings(names)

	return names, nil
}
