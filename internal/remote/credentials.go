package remote

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"github.com/speleokit/speleosync/internal/appdir"
)

// Credentials are the stored API credentials for one instance.
type Credentials struct {
	Instance string `toml:"instance"`
	User     string `toml:"user,omitempty"`
	Token    string `toml:"token"`
}

// LoadCredentials reads stored credentials. The SPELEOSYNC_INSTANCE
// and SPELEOSYNC_TOKEN environment variables override the file, which
// keeps integration tests off the real credentials.
// Returns ErrNoCredentials when nothing is configured.
func LoadCredentials(fs afero.Fs, dataDir string) (*Credentials, error) {
	if instance, token := os.Getenv("SPELEOSYNC_INSTANCE"), os.Getenv("SPELEOSYNC_TOKEN"); instance != "" && token != "" {
		return &Credentials{Instance: instance, Token: token}, nil
	}

	data, err := afero.ReadFile(fs, appdir.CredentialsFile(dataDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCredentials
		}
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	var creds Credentials
	if err := toml.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	if creds.Token == "" || creds.Instance == "" {
		return nil, ErrNoCredentials
	}
	return &creds, nil
}

// SaveCredentials stores credentials with owner-only permissions,
// replacing the file atomically.
func SaveCredentials(fs afero.Fs, dataDir string, creds *Credentials) error {
	data, err := toml.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	if err := fs.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	target := appdir.CredentialsFile(dataDir)
	tmp := target + ".tmp"
	if err := afero.WriteFile(fs, tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := fs.Rename(tmp, target); err != nil {
		_ = fs.Remove(tmp)
		return fmt.Errorf("failed to replace credentials: %w", err)
	}
	// WriteFile applies the mode only on creation; enforce it in case
	// an older file carried looser permissions.
	if err := fs.Chmod(target, 0o600); err != nil {
		return fmt.Errorf("failed to restrict credentials permissions: %w", err)
	}
	return nil
}

// ForgetCredentials deletes stored credentials. Missing files are
// fine.
func ForgetCredentials(fs afero.Fs, dataDir string) error {
	err := fs.Remove(appdir.CredentialsFile(dataDir))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}
	return nil
}
