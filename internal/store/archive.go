package store

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
)

// Pack serializes a FileSet into a zip archive. Members are written
// in sorted order so identical trees produce identical archives.
func Pack(files FileSet) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range files.Names() {
		f, err := w.Create(name)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s to archive: %w", name, err)
		}
		if _, err := f.Write(files[name]); err != nil {
			return nil, fmt.Errorf("failed to write %s to archive: %w", name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

// Unpack reads a zip archive back into a FileSet. Member order does
// not affect the result. Members with absolute or escaping paths are
// rejected outright.
func Unpack(archive []byte) (FileSet, error) {
	r, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	files := FileSet{}
	for _, member := range r.File {
		if member.FileInfo().IsDir() {
			continue
		}
		if !safeRelPath(member.Name) {
			return nil, fmt.Errorf("archive member %q escapes the project root", member.Name)
		}
		rc, err := member.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open archive member %s: %w", member.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read archive member %s: %w", member.Name, err)
		}
		files[member.Name] = data
	}
	return files, nil
}
