package store

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// FileSet is a project file tree held in memory: relative
// slash-separated path to file content.
type FileSet map[string][]byte

// ReadTree walks root and returns its regular files as a FileSet.
// A missing root reads as an empty set.
func ReadTree(fs afero.Fs, root string) (FileSet, error) {
	files := FileSet{}
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		files[filepath.ToSlash(rel)] = data
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return FileSet{}, nil
		}
		return nil, err
	}
	return files, nil
}

// WriteTree materializes a FileSet under root, creating parent
// directories as needed.
func WriteTree(fs afero.Fs, root string, files FileSet) error {
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", root, err)
	}
	for _, rel := range files.Names() {
		full := filepath.Join(root, filepath.FromSlash(rel))
		if dir := filepath.Dir(full); dir != root {
			if err := fs.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}
		}
		if err := afero.WriteFile(fs, full, files[rel], 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", full, err)
		}
	}
	return nil
}

// Equal compares two file sets byte for byte. A file present on one
// side only counts as a difference.
func (s FileSet) Equal(other FileSet) bool {
	if len(s) != len(other) {
		return false
	}
	for name, data := range s {
		otherData, ok := other[name]
		if !ok || !bytes.Equal(data, otherData) {
			return false
		}
	}
	return true
}

// Names returns the file names in sorted order.
func (s FileSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of the set.
func (s FileSet) Clone() FileSet {
	out := make(FileSet, len(s))
	for name, data := range s {
		out[name] = append([]byte(nil), data...)
	}
	return out
}

// safeRelPath reports whether a path from an archive member or file
// map stays inside the tree root.
func safeRelPath(name string) bool {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return false
	}
	clean := filepath.ToSlash(filepath.Clean(name))
	return clean != ".." && !strings.HasPrefix(clean, "../")
}
