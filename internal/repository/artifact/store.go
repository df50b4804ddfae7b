package artifact

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Store defines the operations the packager needs over a build directory.
// Implementations must return deterministic, name-sorted listings so that
// duplicate pruning has a reproducible tie-break.
type Store interface {
	// List returns the top-level entries of the build directory in ascending name order.
	List(ctx context.Context) ([]Entry, error)
	// Files returns every file under the build directory, recursively,
	// as slash-separated paths relative to the root, in ascending order.
	Files(ctx context.Context) ([]string, error)
	// Remove deletes a single entry addressed relative to the root.
	Remove(ctx context.Context, relPath string) error
	// Root returns the absolute or cleaned root the store operates on.
	Root() string
}

// Entry describes one top-level item of the build directory.
type Entry struct {
	// Name is the base name of the entry.
	Name string
	// IsDir reports whether the entry is a directory.
	IsDir bool
}

// FileStore is the filesystem-backed Store used in production.
type FileStore struct {
	// root is the build directory all paths are resolved against.
	root string
	// mu protects concurrent mutation of the directory tree.
	mu sync.Mutex
}

// NewFileStore creates a store rooted at the provided directory.
func NewFileStore(root string) *FileStore {
	return &FileStore{
		root: filepath.Clean(root),
	}
}

// Root returns the cleaned root directory.
func (s *FileStore) Root() string {
	return s.root
}

// List reads the top-level directory entries.
// os.ReadDir already sorts by filename, which is the ordering the pruning
// pass depends on.
func (s *FileStore) List(_ context.Context) ([]Entry, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.root, err)
	}

	result := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		result = append(result, Entry{
			Name:  entry.Name(),
			IsDir: entry.IsDir(),
		})
	}

	return result, nil
}

// Files walks the tree and collects relative file paths in ascending order.
func (s *FileStore) Files(_ context.Context) ([]string, error) {
	var files []string

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}

		files = append(files, filepath.ToSlash(rel))

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.root, err)
	}

	sort.Strings(files)

	return files, nil
}

// Remove deletes a file or empty directory under the root.
func (s *FileStore) Remove(_ context.Context, relPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(filepath.Join(s.root, filepath.FromSlash(relPath))); err != nil {
		return fmt.Errorf("remove %s: %w", relPath, err)
	}

	return nil
}

// Prefix returns the artifact identity used for duplicate detection:
// the substring of the base name before the first dash, or the whole
// name when it contains no dash.
func Prefix(name string) string {
	if i := strings.IndexByte(name, '-'); i >= 0 {
		return name[:i]
	}

	return name
}
