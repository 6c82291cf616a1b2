// Package appdir defines the on-disk layout of the speleosync data
// directory. Every project gets an index copy (last-synced snapshot),
// a working copy (the tree the survey editor touches), and a revision
// marker file next to them.
package appdir

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

const (
	// DirName is the hidden data directory created under the user's
	// home directory when no explicit data dir is configured.
	DirName = ".speleosync"
	// ProjectsDirName holds one subdirectory per project id.
	ProjectsDirName = "projects"
	// IndexDirName is the last-synced snapshot of a project.
	IndexDirName = "index"
	// WorkingDirName is the user-editable copy of a project.
	WorkingDirName = "working_copy"
	// RevisionFileName is the per-project revision marker.
	RevisionFileName = ".revision"
	// CredentialsFileName stores the API credentials (mode 0600).
	CredentialsFileName = "credentials.toml"
	// ConfigFileName is the application configuration file.
	ConfigFileName = "config.toml"
	// LogsDirName holds the rotating application logs.
	LogsDirName = "logs"
)

// Default returns the default data directory (~/.speleosync), falling
// back to a relative path when the home directory cannot be resolved.
func Default() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DirName
	}
	return filepath.Join(home, DirName)
}

// ProjectsDir returns the directory containing all local projects.
func ProjectsDir(dataDir string) string {
	return filepath.Join(dataDir, ProjectsDirName)
}

// ProjectDir returns the directory for a single project.
func ProjectDir(dataDir string, id uuid.UUID) string {
	return filepath.Join(ProjectsDir(dataDir), id.String())
}

// IndexDir returns the index copy directory for a project.
func IndexDir(dataDir string, id uuid.UUID) string {
	return filepath.Join(ProjectDir(dataDir, id), IndexDirName)
}

// WorkingDir returns the working copy directory for a project.
func WorkingDir(dataDir string, id uuid.UUID) string {
	return filepath.Join(ProjectDir(dataDir, id), WorkingDirName)
}

// RevisionFile returns the revision marker path for a project.
func RevisionFile(dataDir string, id uuid.UUID) string {
	return filepath.Join(ProjectDir(dataDir, id), RevisionFileName)
}

// CredentialsFile returns the credentials file path.
func CredentialsFile(dataDir string) string {
	return filepath.Join(dataDir, CredentialsFileName)
}

// ConfigFile returns the configuration file path.
func ConfigFile(dataDir string) string {
	return filepath.Join(dataDir, ConfigFileName)
}

// LogsDir returns the log directory path.
func LogsDir(dataDir string) string {
	return filepath.Join(dataDir, LogsDirName)
}

// EnsureProjectDirs creates the index and working copy directories for
// a project, returning the project directory.
func EnsureProjectDirs(fs afero.Fs, dataDir string, id uuid.UUID) (string, error) {
	for _, dir := range []string{IndexDir(dataDir, id), WorkingDir(dataDir, id)} {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create project directory %s: %w", dir, err)
		}
	}
	return ProjectDir(dataDir, id), nil
}

// EnsureDataDir creates the data directory and its logs subdirectory.
func EnsureDataDir(fs afero.Fs, dataDir string) error {
	for _, dir := range []string{dataDir, ProjectsDir(dataDir), LogsDir(dataDir)} {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create data directory %s: %w", dir, err)
		}
	}
	return nil
}
