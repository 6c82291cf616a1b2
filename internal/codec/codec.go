// Package codec reads and writes the survey project metadata document
// (survey.toml) that accompanies every local project copy, and knows
// just enough about the supported survey editor formats to validate a
// project tree and discover the files an editor entry file references.
//
// The survey data files themselves are treated as opaque byte blobs
// everywhere else in the program; this package is the only place that
// looks inside them.
package codec

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
)

// MetadataFileName is the metadata document stored at the root of
// every index and working copy.
const MetadataFileName = "survey.toml"

// DocumentVersion is written into new metadata documents.
const DocumentVersion = "1.0.0"

// ErrMalformed reports unparsable or structurally invalid content.
var ErrMalformed = errors.New("malformed survey document")

// Format identifies a supported survey editor format.
type Format string

const (
	// FormatCompass is the Compass cave survey format (.mak/.dat/.plt).
	FormatCompass Format = "COMPASS"
	// FormatAriane is the Ariane format (single .tml/.tmlu document).
	FormatAriane Format = "ARIANE"
)

// Valid reports whether the format is one of the supported values.
func (f Format) Valid() bool {
	return f == FormatCompass || f == FormatAriane
}

// artifactExts lists the editor-native file extensions per format,
// lowercase with leading dot.
var artifactExts = map[Format][]string{
	FormatCompass: {".mak", ".dat", ".plt"},
	FormatAriane:  {".tml", ".tmlu"},
}

// SurveyMeta identifies the project a metadata document belongs to.
type SurveyMeta struct {
	ID      uuid.UUID `toml:"id"`
	Format  Format    `toml:"format"`
	Version string    `toml:"version"`
}

// FileMap lists the editor-native files that make up the project,
// relative to the copy root.
type FileMap struct {
	EntryFile string   `toml:"entry_file,omitempty"`
	DataFiles []string `toml:"data_files,omitempty"`
	PlotFiles []string `toml:"plot_files,omitempty"`
}

// Document is the survey project metadata document.
type Document struct {
	Survey  SurveyMeta `toml:"survey"`
	Project FileMap    `toml:"project"`
}

// NewDocument returns a fresh metadata document for a project.
func NewDocument(id uuid.UUID, format Format) *Document {
	return &Document{
		Survey: SurveyMeta{ID: id, Format: format, Version: DocumentVersion},
	}
}

// Parse decodes a metadata document and validates its structure.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if doc.Survey.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing survey id", ErrMalformed)
	}
	if !doc.Survey.Format.Valid() {
		return nil, fmt.Errorf("%w: unknown format %q", ErrMalformed, doc.Survey.Format)
	}
	return &doc, nil
}

// Serialize encodes a metadata document.
func Serialize(doc *Document) ([]byte, error) {
	data, err := toml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize survey document: %w", err)
	}
	return data, nil
}

// TrackedFiles returns every editor-native file the document tracks,
// relative to the copy root.
func (d *Document) TrackedFiles() []string {
	var files []string
	if d.Project.EntryFile != "" {
		files = append(files, d.Project.EntryFile)
	}
	files = append(files, d.Project.DataFiles...)
	files = append(files, d.Project.PlotFiles...)
	return files
}

// IsEmpty reports whether the document tracks no editor files yet.
// A remote project that has never received an upload round-trips as
// an empty document.
func (d *Document) IsEmpty() bool {
	return d.Project.EntryFile == "" && len(d.Project.DataFiles) == 0
}

// IsArtifact reports whether the file name is an editor-native
// artifact for the given format, or the metadata document itself.
// Used when clearing a working copy before a reimport.
func IsArtifact(name string, format Format) bool {
	base := path.Base(strings.ToLower(strings.ReplaceAll(name, "\\", "/")))
	if base == MetadataFileName {
		return true
	}
	ext := path.Ext(base)
	for _, known := range artifactExts[format] {
		if ext == known {
			return true
		}
	}
	return false
}

// ValidateTree checks that every file the document tracks exists
// under dir. Returns ErrMalformed-wrapped errors so callers can
// distinguish structural problems from I/O failures.
func ValidateTree(fs afero.Fs, dir string, doc *Document) error {
	for _, rel := range doc.TrackedFiles() {
		full := path.Join(dir, rel)
		ok, err := afero.Exists(fs, full)
		if err != nil {
			return fmt.Errorf("failed to stat tracked file %s: %w", full, err)
		}
		if !ok {
			return fmt.Errorf("%w: tracked file %s missing", ErrMalformed, rel)
		}
	}
	return nil
}

// LoadTree reads and validates the metadata document stored under dir.
func LoadTree(fs afero.Fs, dir string) (*Document, error) {
	data, err := afero.ReadFile(fs, path.Join(dir, MetadataFileName))
	if err != nil {
		return nil, err
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := ValidateTree(fs, dir, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// References extracts the survey data files a Compass entry (.mak)
// file points at. Reference lines start with '#' and terminate the
// file name with ',' or ';'. Ariane entry files reference nothing.
func References(entry []byte, format Format) []string {
	if format != FormatCompass {
		return nil
	}
	var refs []string
	scanner := bufio.NewScanner(bytes.NewReader(entry))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "#") {
			continue
		}
		name := strings.TrimPrefix(line, "#")
		if i := strings.IndexAny(name, ",;"); i >= 0 {
			name = name[:i]
		}
		name = strings.TrimSpace(name)
		if name != "" {
			refs = append(refs, name)
		}
	}
	return refs
}
