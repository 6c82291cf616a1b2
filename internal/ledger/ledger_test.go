package ledger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/speleokit/speleosync/internal/appdir"
)

func newLedger(t *testing.T) (*Ledger, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	return New(fs, "/data"), fs
}

func TestReadMissingMarker(t *testing.T) {
	l, _ := newLedger(t)
	rev, ok := l.Read(uuid.New())
	if ok || rev != "" {
		t.Errorf("missing marker should read as absent, got (%q, %v)", rev, ok)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	l, fs := newLedger(t)
	id := uuid.New()
	if _, err := appdir.EnsureProjectDirs(fs, "/data", id); err != nil {
		t.Fatal(err)
	}

	if err := l.Write(id, "9f2c1aa0"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	rev, ok := l.Read(id)
	if !ok || rev != "9f2c1aa0" {
		t.Errorf("Read = (%q, %v), want (9f2c1aa0, true)", rev, ok)
	}

	// A second write replaces the marker.
	if err := l.Write(id, "b4d455"); err != nil {
		t.Fatalf("second Write failed: %v", err)
	}
	rev, ok = l.Read(id)
	if !ok || rev != "b4d455" {
		t.Errorf("Read = (%q, %v), want (b4d455, true)", rev, ok)
	}
}

func TestWriteRejectsEmptyRevision(t *testing.T) {
	l, _ := newLedger(t)
	if err := l.Write(uuid.New(), "   "); err == nil {
		t.Fatal("Write should reject a blank revision")
	}
}

func TestCorruptMarkerReadsAsAbsent(t *testing.T) {
	l, fs := newLedger(t)
	id := uuid.New()

	tests := []struct {
		name    string
		content []byte
	}{
		{"empty", []byte("")},
		{"whitespace", []byte("  \n")},
		{"control bytes", []byte("abc\x00def")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := afero.WriteFile(fs, appdir.RevisionFile("/data", id), tt.content, 0o644); err != nil {
				t.Fatal(err)
			}
			if rev, ok := l.Read(id); ok {
				t.Errorf("corrupt marker should read as absent, got %q", rev)
			}
		})
	}
}

func TestWriteLeavesNoTempFile(t *testing.T) {
	l, fs := newLedger(t)
	id := uuid.New()
	if _, err := appdir.EnsureProjectDirs(fs, "/data", id); err != nil {
		t.Fatal(err)
	}
	if err := l.Write(id, "abc123"); err != nil {
		t.Fatal(err)
	}
	exists, _ := afero.Exists(fs, appdir.RevisionFile("/data", id)+".tmp")
	if exists {
		t.Error("temp marker file should not survive a successful write")
	}
}

func TestClearIsIdempotent(t *testing.T) {
	l, fs := newLedger(t)
	id := uuid.New()
	if _, err := appdir.EnsureProjectDirs(fs, "/data", id); err != nil {
		t.Fatal(err)
	}
	if err := l.Write(id, "abc123"); err != nil {
		t.Fatal(err)
	}

	if err := l.Clear(id); err != nil {
		t.Fatalf("first Clear failed: %v", err)
	}
	if err := l.Clear(id); err != nil {
		t.Fatalf("second Clear failed: %v", err)
	}
	if _, ok := l.Read(id); ok {
		t.Error("marker should be gone after Clear")
	}
}
