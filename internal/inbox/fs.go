// Package inbox ingests diary entries dropped as plain-text files into
// a watched directory. Files are processed through the consolidation
// pipeline and removed on success.
package inbox

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Provider is the interface for inbox file operations.
type Provider interface {
	// List returns the names of every .txt file in the inbox, sorted.
	List() ([]string, error)
	// Read returns the contents of the named file.
	Read(name string) ([]byte, error)
	// Remove deletes the named file after successful processing.
	Remove(name string) error
}

// FS implements Provider backed by a local directory.
type FS struct {
	root string
}

// Verify *FS satisfies Provider at compile time.
var _ Provider = (*FS)(nil)

// NewFS creates an FS provider rooted at dir, creating it if needed.
func NewFS(dir string) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("inbox: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("inbox: create root: %w", err)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute inbox directory.
func (f *FS) Root() string {
	return f.root
}

// safeName rejects names that would escape the inbox directory.
func (f *FS) safeName(name string) (string, error) {
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.HasPrefix(cleaned, ".") {
		return "", fmt.Errorf("inbox: invalid file name: %s", name)
	}
	return filepath.Join(f.root, cleaned), nil
}

// List returns the names of all .txt files currently in the inbox.
func (f *FS) List() ([]string, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("inbox: list: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Read returns the contents of the named inbox file.
func (f *FS) Read(name string) ([]byte, error) {
	p, err := f.safeName(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("inbox: read %s: %w", name, err)
	}
	return data, nil
}

// Remove deletes the named inbox file.
func (f *FS) Remove(name string) error {
	p, err := f.safeName(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return fmt.Errorf("inbox: remove %s: %w", name, err)
	}
	return nil
}
