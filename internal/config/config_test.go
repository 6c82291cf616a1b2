package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/speleokit/speleosync/internal/appdir"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.RemoteInterval.Std() != 120*time.Second {
		t.Errorf("remote interval = %s, want 120s", cfg.RemoteInterval.Std())
	}
	if cfg.LocalInterval.Std() != time.Second {
		t.Errorf("local interval = %s, want 1s", cfg.LocalInterval.Std())
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg, err := Load(fs, "/data")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Instance != DefaultInstance {
		t.Errorf("instance = %q, want default", cfg.Instance)
	}
	if cfg.DataDir != "/data" {
		t.Errorf("data dir = %q, want /data", cfg.DataDir)
	}
}

func TestLoadParsesDurations(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := `instance = "https://stage.speleodb.org"
remote_interval = "45s"
local_interval = "250ms"
`
	if err := afero.WriteFile(fs, appdir.ConfigFile("/data"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(fs, "/data")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Instance != "https://stage.speleodb.org" {
		t.Errorf("instance = %q", cfg.Instance)
	}
	if cfg.RemoteInterval.Std() != 45*time.Second {
		t.Errorf("remote interval = %s, want 45s", cfg.RemoteInterval.Std())
	}
	if cfg.LocalInterval.Std() != 250*time.Millisecond {
		t.Errorf("local interval = %s, want 250ms", cfg.LocalInterval.Std())
	}
}

func TestLoadRejectsBadInstance(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, appdir.ConfigFile("/data"), []byte(`instance = "not a url"`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(fs, "/data"); err == nil {
		t.Fatal("Load should reject an unparsable instance URL")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := DefaultConfig()
	cfg.DataDir = "/data"
	cfg.EditorCommand = "/usr/bin/compass"
	cfg.RemoteInterval = Duration(90 * time.Second)

	if err := Save(fs, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(fs, "/data")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.EditorCommand != "/usr/bin/compass" {
		t.Errorf("editor command = %q", loaded.EditorCommand)
	}
	if loaded.RemoteInterval.Std() != 90*time.Second {
		t.Errorf("remote interval = %s, want 90s", loaded.RemoteInterval.Std())
	}
}
