package remote

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speleokit/speleosync/internal/appdir"
)

func TestCredentialsRoundTrip(t *testing.T) {
	t.Setenv("SPELEOSYNC_INSTANCE", "")
	t.Setenv("SPELEOSYNC_TOKEN", "")
	fs := afero.NewMemMapFs()

	want := &Credentials{Instance: "https://www.speleodb.org", User: "caver@example.org", Token: "secret"}
	require.NoError(t, SaveCredentials(fs, "/data", want))

	got, err := LoadCredentials(fs, "/data")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	info, err := fs.Stat(appdir.CredentialsFile("/data"))
	require.NoError(t, err)
	assert.Equal(t, "-rw-------", info.Mode().String())
}

func TestLoadCredentialsMissing(t *testing.T) {
	t.Setenv("SPELEOSYNC_INSTANCE", "")
	t.Setenv("SPELEOSYNC_TOKEN", "")
	_, err := LoadCredentials(afero.NewMemMapFs(), "/data")
	assert.True(t, errors.Is(err, ErrNoCredentials))
}

func TestLoadCredentialsBlankToken(t *testing.T) {
	t.Setenv("SPELEOSYNC_INSTANCE", "")
	t.Setenv("SPELEOSYNC_TOKEN", "")
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, appdir.CredentialsFile("/data"),
		[]byte("instance = \"https://www.speleodb.org\"\ntoken = \"\"\n"), 0o600))

	_, err := LoadCredentials(fs, "/data")
	assert.True(t, errors.Is(err, ErrNoCredentials))
}

func TestLoadCredentialsEnvOverride(t *testing.T) {
	t.Setenv("SPELEOSYNC_INSTANCE", "https://staging.speleodb.org")
	t.Setenv("SPELEOSYNC_TOKEN", "env-token")
	fs := afero.NewMemMapFs()
	require.NoError(t, SaveCredentials(fs, "/data", &Credentials{Instance: "https://www.speleodb.org", Token: "file-token"}))

	got, err := LoadCredentials(fs, "/data")
	require.NoError(t, err)
	assert.Equal(t, "https://staging.speleodb.org", got.Instance)
	assert.Equal(t, "env-token", got.Token)
}

func TestSaveCredentialsReplacesExisting(t *testing.T) {
	t.Setenv("SPELEOSYNC_INSTANCE", "")
	t.Setenv("SPELEOSYNC_TOKEN", "")
	fs := afero.NewMemMapFs()
	require.NoError(t, SaveCredentials(fs, "/data", &Credentials{Instance: "https://a.example", Token: "one"}))
	require.NoError(t, SaveCredentials(fs, "/data", &Credentials{Instance: "https://b.example", Token: "two"}))

	got, err := LoadCredentials(fs, "/data")
	require.NoError(t, err)
	assert.Equal(t, "two", got.Token)

	exists, err := afero.Exists(fs, appdir.CredentialsFile("/data")+".tmp")
	require.NoError(t, err)
	assert.False(t, exists, "temp file must not survive a save")
}

func TestForgetCredentials(t *testing.T) {
	t.Setenv("SPELEOSYNC_INSTANCE", "")
	t.Setenv("SPELEOSYNC_TOKEN", "")
	fs := afero.NewMemMapFs()
	require.NoError(t, SaveCredentials(fs, "/data", &Credentials{Instance: "https://a.example", Token: "one"}))
	require.NoError(t, ForgetCredentials(fs, "/data"))
	require.NoError(t, ForgetCredentials(fs, "/data"))

	_, err := LoadCredentials(fs, "/data")
	assert.True(t, errors.Is(err, ErrNoCredentials))
}
