// Package ledger persists the last-synced remote revision marker for
// each local project. The marker is opaque: it is compared for
// equality only, never ordered.
//
// Writes go through a temp file and a rename so a crash mid-write can
// never leave a truncated marker. A marker that fails to read back
// cleanly is reported as "never synced" rather than an error, because
// re-downloading is always safe.
package ledger

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/speleokit/speleosync/internal/appdir"
)

// Ledger reads and writes revision markers under a data directory.
type Ledger struct {
	fs      afero.Fs
	dataDir string
}

// New creates a Ledger rooted at the given data directory.
func New(fs afero.Fs, dataDir string) *Ledger {
	return &Ledger{fs: fs, dataDir: dataDir}
}

// Read returns the stored revision for a project and whether one
// exists. Missing, empty, or corrupt markers read as absent.
func (l *Ledger) Read(id uuid.UUID) (string, bool) {
	data, err := afero.ReadFile(l.fs, appdir.RevisionFile(l.dataDir, id))
	if err != nil {
		return "", false
	}
	rev := strings.TrimSpace(string(data))
	if rev == "" || !printable(rev) {
		return "", false
	}
	return rev, true
}

// Write stores the revision marker for a project atomically.
func (l *Ledger) Write(id uuid.UUID, revision string) error {
	revision = strings.TrimSpace(revision)
	if revision == "" {
		return fmt.Errorf("refusing to write empty revision for project %s", id)
	}

	target := appdir.RevisionFile(l.dataDir, id)
	tmp := target + ".tmp"
	if err := afero.WriteFile(l.fs, tmp, []byte(revision+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write revision marker: %w", err)
	}
	if err := l.fs.Rename(tmp, target); err != nil {
		_ = l.fs.Remove(tmp)
		return fmt.Errorf("failed to replace revision marker: %w", err)
	}
	return nil
}

// Clear removes the revision marker for a project. Missing markers
// are not an error.
func (l *Ledger) Clear(id uuid.UUID) error {
	err := l.fs.Remove(appdir.RevisionFile(l.dataDir, id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear revision marker: %w", err)
	}
	return nil
}

// printable rejects markers containing control bytes, the likely
// shape of a marker corrupted by a partial write.
func printable(s string) bool {
	for _, r := range s {
		if r == unicode.ReplacementChar || unicode.IsControl(r) {
			return false
		}
	}
	return true
}
